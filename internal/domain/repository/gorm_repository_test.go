package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"iot-device-service/internal/domain/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestDeviceRepository_DeactivateStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db)
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	mock.ExpectExec(`UPDATE "devices" SET "last_status_change"=\$1,"status"=\$2,"updated_at"=\$3 WHERE status = \$4 AND \(last_active_at < \$5 OR last_active_at IS NULL\)`).
		WithArgs(now, "inactive", now, "active", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	modified, err := repo.DeactivateStale(context.Background(), cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), modified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRepository_GetByIDScopedToOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db)
	owner, id := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "devices" WHERE id = \$1 AND owner_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name"}))

	_, err := repo.GetByID(context.Background(), owner, id)
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRepository_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db)

	mock.ExpectExec(`DELETE FROM "devices" WHERE id = \$1 AND owner_id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRepository_ListCountsThenPages(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceRepository(db)
	owner := uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "devices" WHERE owner_id = \$1 AND type = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(`SELECT \* FROM "devices" WHERE owner_id = \$1 AND type = \$2 ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "type", "status"}).
			AddRow(uuid.NewString(), owner.String(), "m1", "meter", "active"))

	list, total, err := repo.List(context.Background(), owner, models.DeviceFilter{Type: models.DeviceTypeMeter}, models.PaginationQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	require.Len(t, list, 1)
	assert.Equal(t, models.DeviceTypeMeter, list[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceLogRepository_SumValues(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceLogRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(numeric_value\), 0\) FROM "device_logs" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(15.0))

	total, err := repo.SumValues(context.Background(), uuid.New(), uuid.New(), models.EventUnitsConsumed, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, 15.0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmailNormalizes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password", "role"}).
			AddRow(uuid.NewString(), "A", "a@x.io", "hash", "user"))

	user, err := repo.GetByEmail(context.Background(), "  A@X.io ")
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
