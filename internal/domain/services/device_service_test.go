package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-device-service/internal/domain/models"
)

func TestDeviceService_CreateDefaultsToInactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()

	d, err := f.devices.CreateDevice(ctx, owner, CreateDeviceInput{Name: " Lamp ", Type: models.DeviceTypeLight})
	require.NoError(t, err)
	assert.Equal(t, "Lamp", d.Name)
	assert.Equal(t, models.DeviceStatusInactive, d.Status)
	assert.Equal(t, owner, d.OwnerID)
	assert.Nil(t, d.LastActiveAt)
	assert.False(t, d.LastStatusChange.IsZero())
}

func TestDeviceService_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice, bob := uuid.New(), uuid.New()

	d, err := f.devices.CreateDevice(ctx, alice, CreateDeviceInput{Name: "Meter", Type: models.DeviceTypeMeter})
	require.NoError(t, err)

	name := "mine now"
	_, err = f.devices.GetDevice(ctx, bob, d.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.devices.UpdateDevice(ctx, bob, d.ID, models.DeviceUpdate{Name: &name})
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.devices.Heartbeat(ctx, bob, d.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, f.devices.DeleteDevice(ctx, bob, d.ID), models.ErrNotFound)

	got, err := f.devices.GetDevice(ctx, alice, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meter", got.Name)
}

func TestDeviceService_UpdateAllowList(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()
	d, err := f.devices.CreateDevice(ctx, owner, CreateDeviceInput{Name: "Cam", Type: models.DeviceTypeCamera})
	require.NoError(t, err)

	_, err = f.devices.UpdateDevice(ctx, owner, d.ID, models.DeviceUpdate{})
	assert.ErrorIs(t, err, models.ErrNoUpdateFields)

	status := models.DeviceStatusFaulty
	updated, err := f.devices.UpdateDevice(ctx, owner, d.ID, models.DeviceUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusFaulty, updated.Status)
	assert.Equal(t, "Cam", updated.Name)
	assert.Equal(t, owner, updated.OwnerID)
	assert.Equal(t, d.ID, updated.ID)

	got, err := f.devices.GetDevice(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusFaulty, got.Status)
}

func TestDeviceService_Heartbeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()
	d, err := f.devices.CreateDevice(ctx, owner, CreateDeviceInput{Name: "Thermo", Type: models.DeviceTypeThermostat})
	require.NoError(t, err)

	before := time.Now().UTC()
	hb, err := f.devices.Heartbeat(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusActive, hb.Status)
	require.NotNil(t, hb.LastActiveAt)
	assert.False(t, hb.LastActiveAt.Before(before))

	got, err := f.devices.GetDevice(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStatusActive, got.Status)
	assert.Equal(t, *hb.LastActiveAt, *got.LastActiveAt)
}

func TestDeviceService_ListPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := f.devices.CreateDevice(ctx, owner, CreateDeviceInput{Name: "L", Type: models.DeviceTypeLight})
		require.NoError(t, err)
	}
	_, err := f.devices.CreateDevice(ctx, owner, CreateDeviceInput{Name: "M", Type: models.DeviceTypeMeter, Status: models.DeviceStatusActive})
	require.NoError(t, err)

	res, err := f.devices.ListDevices(ctx, owner, models.DeviceFilter{}, models.PaginationQuery{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, res.Results, 3)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, int64(4), res.TotalResults)

	res, err = f.devices.ListDevices(ctx, owner, models.DeviceFilter{Status: models.DeviceStatusActive}, models.PaginationQuery{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "M", res.Results[0].Name)
	assert.Equal(t, 10, res.Limit)
}
