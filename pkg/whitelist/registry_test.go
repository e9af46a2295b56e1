package whitelist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/devicegate/pkg/db"
	"github.com/gridpulse/devicegate/pkg/macaddr"
	"github.com/gridpulse/devicegate/pkg/models"
)

type fakeStore struct {
	mu      sync.Mutex
	devices map[string]*models.AuthorizedDevice
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{devices: make(map[string]*models.AuthorizedDevice)}
}

func (f *fakeStore) GetAuthorizedDevice(_ context.Context, mac string) (*models.AuthorizedDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	device, ok := f.devices[mac]
	if !ok {
		return nil, db.ErrDeviceNotFound
	}

	clone := *device

	return &clone, nil
}

func (f *fakeStore) UpsertAuthorizedDevice(_ context.Context, device *models.AuthorizedDevice) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := *device
	f.devices[device.MACAddress] = &clone

	return nil
}

func (f *fakeStore) DeactivateAuthorizedDevice(_ context.Context, mac string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	device, ok := f.devices[mac]
	if !ok {
		return false, nil
	}

	device.IsActive = false

	return true, nil
}

func (f *fakeStore) ListAuthorizedDevices(_ context.Context, activeOnly bool) ([]*models.AuthorizedDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*models.AuthorizedDevice, 0, len(f.devices))

	for _, device := range f.devices {
		if activeOnly && !device.IsActive {
			continue
		}

		clone := *device
		out = append(out, &clone)
	}

	return out, nil
}

func (f *fakeStore) TouchDeviceLastSeen(_ context.Context, mac string, when time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if device, ok := f.devices[mac]; ok {
		device.LastSeen = &when
	}

	return nil
}

func TestAddNewDevice(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store, nil)

	err := registry.Add(context.Background(), "aa:bb:cc:dd:ee:ff", "meter-01", "ops", "")
	require.NoError(t, err)

	device, err := registry.Lookup(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", device.MACAddress)
	assert.Equal(t, "meter-01", device.DeviceName)
	assert.True(t, device.IsActive)
}

func TestAddActiveDeviceFails(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store, nil)

	require.NoError(t, registry.Add(context.Background(), "AA:BB:CC:DD:EE:FF", "meter-01", "ops", ""))

	err := registry.Add(context.Background(), "aa-bb-cc-dd-ee-ff", "meter-01-again", "ops", "")
	require.ErrorIs(t, err, ErrAlreadyAuthorized)
}

func TestAddReactivatesDeactivatedDevice(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store, nil)

	require.NoError(t, registry.Add(context.Background(), "AA:BB:CC:DD:EE:FF", "meter-01", "ops", ""))

	found, err := registry.Deactivate(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, registry.Add(context.Background(), "AA:BB:CC:DD:EE:FF", "meter-01", "ops", "returned from repair"))

	authorized, err := registry.IsAuthorized(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.True(t, authorized)
}

func TestAddRejectsInvalidMAC(t *testing.T) {
	registry := NewRegistry(newFakeStore(), nil)

	err := registry.Add(context.Background(), "not-a-mac", "meter-01", "ops", "")
	require.ErrorIs(t, err, macaddr.ErrInvalidMAC)
}

func TestDeactivateUnknownDevice(t *testing.T) {
	registry := NewRegistry(newFakeStore(), nil)

	found, err := registry.Deactivate(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsAuthorized(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store, nil)

	authorized, err := registry.IsAuthorized(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.False(t, authorized, "unknown MAC must not be authorized")

	require.NoError(t, registry.Add(context.Background(), "AA:BB:CC:DD:EE:FF", "meter-01", "ops", ""))

	authorized, err = registry.IsAuthorized(context.Background(), "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.True(t, authorized, "lookup must normalize before comparing")

	_, err = registry.Deactivate(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	authorized, err = registry.IsAuthorized(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.False(t, authorized, "deactivated MAC must not be authorized")
}

func TestListActiveOnly(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store, nil)

	require.NoError(t, registry.Add(context.Background(), "AA:BB:CC:DD:EE:01", "meter-01", "ops", ""))
	require.NoError(t, registry.Add(context.Background(), "AA:BB:CC:DD:EE:02", "meter-02", "ops", ""))

	_, err := registry.Deactivate(context.Background(), "AA:BB:CC:DD:EE:02")
	require.NoError(t, err)

	all, err := registry.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := registry.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", active[0].MACAddress)
}

func TestTouchLastSeen(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store, nil)

	require.NoError(t, registry.Add(context.Background(), "AA:BB:CC:DD:EE:FF", "meter-01", "ops", ""))

	when := time.Now().UTC()
	require.NoError(t, registry.TouchLastSeen(context.Background(), "aa:bb:cc:dd:ee:ff", when))

	device, err := registry.Lookup(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.NotNil(t, device.LastSeen)
	assert.True(t, device.LastSeen.Equal(when))
}
