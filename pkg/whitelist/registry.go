// Package whitelist answers membership queries against the administratively
// maintained set of MAC addresses permitted to submit telemetry, and carries
// the admin operations that maintain it.
package whitelist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridpulse/devicegate/pkg/db"
	"github.com/gridpulse/devicegate/pkg/logger"
	"github.com/gridpulse/devicegate/pkg/macaddr"
	"github.com/gridpulse/devicegate/pkg/models"
)

// ErrAlreadyAuthorized indicates an Add for a MAC that is already active.
var ErrAlreadyAuthorized = errors.New("device already authorized and active")

// Store is the slice of the storage service the registry needs.
type Store interface {
	GetAuthorizedDevice(ctx context.Context, mac string) (*models.AuthorizedDevice, error)
	UpsertAuthorizedDevice(ctx context.Context, device *models.AuthorizedDevice) error
	DeactivateAuthorizedDevice(ctx context.Context, mac string) (bool, error)
	ListAuthorizedDevices(ctx context.Context, activeOnly bool) ([]*models.AuthorizedDevice, error)
	TouchDeviceLastSeen(ctx context.Context, mac string, when time.Time) error
}

// Registry answers whitelist membership queries keyed by normalized MAC.
type Registry struct {
	store  Store
	logger logger.Logger
}

// NewRegistry builds a Registry over the given store.
func NewRegistry(store Store, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Registry{store: store, logger: log}
}

// Lookup returns the whitelist entry for a MAC. The MAC is normalized
// before comparison. Absence surfaces as db.ErrDeviceNotFound, which is an
// expected outcome callers branch on, not a fault.
func (r *Registry) Lookup(ctx context.Context, mac string) (*models.AuthorizedDevice, error) {
	normalized, err := macaddr.Normalize(mac)
	if err != nil {
		return nil, err
	}

	return r.store.GetAuthorizedDevice(ctx, normalized)
}

// IsAuthorized reports whether the MAC is whitelisted and active.
func (r *Registry) IsAuthorized(ctx context.Context, mac string) (bool, error) {
	device, err := r.Lookup(ctx, mac)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return false, nil
		}

		return false, err
	}

	return device.IsActive, nil
}

// TouchLastSeen advances the entry's last-seen timestamp.
func (r *Registry) TouchLastSeen(ctx context.Context, mac string, when time.Time) error {
	normalized, err := macaddr.Normalize(mac)
	if err != nil {
		return err
	}

	return r.store.TouchDeviceLastSeen(ctx, normalized, when)
}

// Add registers a MAC address, or reactivates it when a deactivated entry
// already exists. Adding a MAC that is already active fails with
// ErrAlreadyAuthorized.
func (r *Registry) Add(ctx context.Context, mac, deviceName, userName, notes string) error {
	normalized, err := macaddr.Normalize(mac)
	if err != nil {
		return err
	}

	existing, err := r.store.GetAuthorizedDevice(ctx, normalized)
	if err != nil && !errors.Is(err, db.ErrDeviceNotFound) {
		return err
	}

	if existing != nil && existing.IsActive {
		return fmt.Errorf("%w: %s", ErrAlreadyAuthorized, normalized)
	}

	device := &models.AuthorizedDevice{
		MACAddress:     normalized,
		DeviceName:     deviceName,
		UserName:       userName,
		RegisteredDate: time.Now().UTC(),
		IsActive:       true,
		Notes:          notes,
	}

	if err := r.store.UpsertAuthorizedDevice(ctx, device); err != nil {
		return err
	}

	if existing != nil {
		r.logger.Info().Str("mac", normalized).Msg("reactivated whitelisted device")
	} else {
		r.logger.Info().Str("mac", normalized).Str("device", deviceName).Msg("added device to whitelist")
	}

	return nil
}

// Deactivate marks a MAC inactive without deleting its registration. It
// reports whether the entry existed.
func (r *Registry) Deactivate(ctx context.Context, mac string) (bool, error) {
	normalized, err := macaddr.Normalize(mac)
	if err != nil {
		return false, err
	}

	found, err := r.store.DeactivateAuthorizedDevice(ctx, normalized)
	if err != nil {
		return false, err
	}

	if found {
		r.logger.Info().Str("mac", normalized).Msg("deactivated whitelisted device")
	} else {
		r.logger.Warn().Str("mac", normalized).Msg("deactivate requested for unknown device")
	}

	return found, nil
}

// List returns whitelist entries, optionally only active ones.
func (r *Registry) List(ctx context.Context, activeOnly bool) ([]*models.AuthorizedDevice, error) {
	return r.store.ListAuthorizedDevices(ctx, activeOnly)
}
