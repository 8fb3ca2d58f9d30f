package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"iot-device-service/internal/domain/models"
)

// MemoryStore 进程内存储，三张"表"共用一把锁。返回值都是副本。
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	emails  map[string]uuid.UUID
	devices map[uuid.UUID]models.Device
	logs    []models.DeviceLog
	now     func() time.Time
}

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uuid.UUID]models.User),
		emails:  make(map[string]uuid.UUID),
		devices: make(map[uuid.UUID]models.Device),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Users() UserRepository     { return memoryUsers{s} }
func (s *MemoryStore) Devices() DeviceStore      { return memoryDevices{s} }
func (s *MemoryStore) Logs() DeviceLogRepository { return memoryLogs{s} }

// stamp 模拟 gorm 的主键与时间戳填充
func (s *MemoryStore) stamp(base *models.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := s.now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = now
	}
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	if _, ok := r.s.emails[email]; ok {
		return models.ErrDuplicateEmail
	}
	user.Email = email
	r.s.stamp(&user.BaseModel)
	r.s.users[user.ID] = *user
	r.s.emails[email] = user.ID
	return nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[models.NormalizeEmail(email)]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	user := r.s.users[id]
	return &user, nil
}

func (r memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &user, nil
}

type memoryDevices struct{ s *MemoryStore }

func (r memoryDevices) Create(_ context.Context, device *models.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stamp(&device.BaseModel)
	r.s.devices[device.ID] = *device
	return nil
}

func (r memoryDevices) List(_ context.Context, ownerID uuid.UUID, filter models.DeviceFilter, page models.PaginationQuery) ([]models.Device, int64, error) {
	r.s.mu.RLock()
	matched := make([]models.Device, 0)
	for _, d := range r.s.devices {
		if d.OwnerID != ownerID {
			continue
		}
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		matched = append(matched, d)
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := page.Offset()
	if start < 0 || start >= len(matched) {
		return []models.Device{}, total, nil
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r memoryDevices) GetByID(_ context.Context, ownerID, id uuid.UUID) (*models.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.devices[id]
	if !ok || d.OwnerID != ownerID {
		return nil, models.ErrDeviceNotFound
	}
	return &d, nil
}

func (r memoryDevices) Update(_ context.Context, ownerID uuid.UUID, device *models.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.devices[device.ID]
	if !ok || current.OwnerID != ownerID {
		return models.ErrDeviceNotFound
	}
	current.Name = device.Name
	current.Type = device.Type
	current.Status = device.Status
	current.LastActiveAt = device.LastActiveAt
	current.LastStatusChange = device.LastStatusChange
	current.UpdatedAt = device.UpdatedAt
	r.s.devices[device.ID] = current
	return nil
}

func (r memoryDevices) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.devices[id]
	if !ok || d.OwnerID != ownerID {
		return models.ErrDeviceNotFound
	}
	delete(r.s.devices, id)
	return nil
}

func (r memoryDevices) DeactivateStale(_ context.Context, cutoff, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var modified int64
	for id, d := range r.s.devices {
		if d.Status != models.DeviceStatusActive {
			continue
		}
		if d.LastActiveAt != nil && !d.LastActiveAt.Before(cutoff) {
			continue
		}
		d.Status = models.DeviceStatusInactive
		d.LastStatusChange = now
		d.UpdatedAt = now
		r.s.devices[id] = d
		modified++
	}
	return modified, nil
}

type memoryLogs struct{ s *MemoryStore }

func (r memoryLogs) Create(_ context.Context, log *models.DeviceLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.s.now()
	}
	r.s.logs = append(r.s.logs, *log)
	return nil
}

func (r memoryLogs) Recent(_ context.Context, ownerID, deviceID uuid.UUID, limit int) ([]models.DeviceLog, error) {
	r.s.mu.RLock()
	matched := make([]models.DeviceLog, 0, limit)
	// 倒序遍历，同一时刻写入的条目后写在前
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		l := r.s.logs[i]
		if l.DeviceID == deviceID && l.OwnerID == ownerID {
			matched = append(matched, l)
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r memoryLogs) SumValues(_ context.Context, ownerID, deviceID uuid.UUID, event string, from, to time.Time) (float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var total float64
	for _, l := range r.s.logs {
		if l.DeviceID != deviceID || l.OwnerID != ownerID || l.Event != event || l.NumericValue == nil {
			continue
		}
		if l.CreatedAt.Before(from) || l.CreatedAt.After(to) {
			continue
		}
		total += *l.NumericValue
	}
	return total, nil
}
