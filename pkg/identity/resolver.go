// Package identity drives the per-report admit/flag/reject decision: it
// checks the whitelist, canonicalizes and hashes the reported hardware
// profile, scores divergence against the stored baseline, and updates the
// baseline under per-MAC serialization.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gridpulse/devicegate/pkg/db"
	"github.com/gridpulse/devicegate/pkg/fingerprint"
	"github.com/gridpulse/devicegate/pkg/logger"
	"github.com/gridpulse/devicegate/pkg/macaddr"
	"github.com/gridpulse/devicegate/pkg/models"
)

// DefaultStorageTimeout bounds the storage round trips made while resolving
// one report when no timeout is configured.
const DefaultStorageTimeout = 5 * time.Second

// WhitelistRegistry is the slice of the whitelist the resolver consumes.
type WhitelistRegistry interface {
	Lookup(ctx context.Context, mac string) (*models.AuthorizedDevice, error)
	TouchLastSeen(ctx context.Context, mac string, when time.Time) error
}

// FingerprintStore is the slice of the storage service the resolver consumes.
type FingerprintStore interface {
	MutateFingerprint(ctx context.Context, mac string, fn db.FingerprintMutator) error
}

// Resolver evaluates incoming reports. Each invocation owns its report
// exclusively; instances are safe for concurrent use because all mutable
// per-MAC state lives behind the store's row-level serialization.
type Resolver struct {
	whitelist WhitelistRegistry
	store     FingerprintStore
	scorer    *fingerprint.Scorer
	logger    logger.Logger

	strictMode         bool
	fingerprintEnabled bool
	certificateSecret  string
	storageTimeout     time.Duration

	now func() time.Time
}

// NewResolver wires a resolver from injected dependencies and the identity
// configuration section.
func NewResolver(wl WhitelistRegistry, store FingerprintStore, cfg models.IdentityConfig, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewTestLogger()
	}

	enabled := true
	if cfg.FingerprintEnabled != nil {
		enabled = *cfg.FingerprintEnabled
	}

	timeout := time.Duration(cfg.StorageTimeout)
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}

	return &Resolver{
		whitelist:          wl,
		store:              store,
		scorer:             fingerprint.NewScorer(cfg.SuspiciousThreshold),
		logger:             log,
		strictMode:         cfg.StrictMode,
		fingerprintEnabled: enabled,
		certificateSecret:  cfg.CertificateSecret,
		storageTimeout:     timeout,
		now:                time.Now,
	}
}

// Resolve evaluates one report. Every terminal state yields a Decision;
// failure of any step aborts to Reject with a distinguishing reason code,
// never a silent admit.
func (r *Resolver) Resolve(ctx context.Context, report *models.Report) *Decision {
	traceID := uuid.New().String()

	mac, err := macaddr.Normalize(report.MACAddress)
	if err != nil {
		r.logger.Warn().Str("trace_id", traceID).Str("mac", report.MACAddress).
			Err(err).Msg("rejecting report with malformed mac")

		return &Decision{TraceID: traceID, Outcome: Reject, Reason: ReasonInvalidMAC}
	}

	log := r.logger.With().Str("trace_id", traceID).Str("mac", mac).Logger()

	ctx, cancel := context.WithTimeout(ctx, r.storageTimeout)
	defer cancel()

	device, err := r.whitelist.Lookup(ctx, mac)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			log.Warn().Msg("unauthorized device attempted access")
			return &Decision{TraceID: traceID, Outcome: Reject, Reason: ReasonNotAuthorized}
		}

		return r.storageReject(&log, traceID, "whitelist lookup", err)
	}

	if !device.IsActive {
		log.Warn().Msg("deactivated device attempted access")
		return &Decision{TraceID: traceID, Outcome: Reject, Reason: ReasonDeactivated}
	}

	if r.certificateSecret != "" {
		if !VerifyCertificate(r.certificateSecret, mac, report.Certificate) {
			log.Warn().Msg("device certificate mismatch")
			return &Decision{TraceID: traceID, Outcome: Reject, Reason: ReasonInvalidCertificate}
		}
	}

	if !r.fingerprintEnabled {
		if err := r.whitelist.TouchLastSeen(ctx, mac, r.now().UTC()); err != nil {
			return r.storageReject(&log, traceID, "touch last seen", err)
		}

		return &Decision{TraceID: traceID, Outcome: Admit, Reason: ReasonFingerprintDisabled}
	}

	form := fingerprint.Canonicalize(report.Hardware)
	hash := form.Hash()

	var (
		riskScore  float64
		suspicious bool
		firstSeen  bool
	)

	err = r.store.MutateFingerprint(ctx, mac, func(existing *models.DeviceFingerprint) (*models.DeviceFingerprint, error) {
		riskScore, suspicious = r.scorer.Score(hash, form, existing)

		now := r.now().UTC()

		updated := &models.DeviceFingerprint{
			MACAddress:      mac,
			DeviceID:        report.DeviceID,
			Hardware:        report.Hardware,
			FingerprintHash: hash,
			RiskScore:       riskScore,
			IsSuspicious:    suspicious,
			FirstSeen:       now,
			LastSeen:        now,
		}

		if existing != nil {
			updated.FirstSeen = existing.FirstSeen
		} else {
			firstSeen = true
		}

		return updated, nil
	})
	if err != nil {
		return r.storageReject(&log, traceID, "fingerprint mutate", err)
	}

	if err := r.whitelist.TouchLastSeen(ctx, mac, r.now().UTC()); err != nil {
		return r.storageReject(&log, traceID, "touch last seen", err)
	}

	decision := &Decision{
		TraceID:    traceID,
		RiskScore:  riskScore,
		Suspicious: suspicious,
	}

	switch {
	case suspicious && r.strictMode:
		decision.Outcome = Reject
		decision.Reason = ReasonSuspiciousRejected
	case suspicious:
		decision.Outcome = AdmitWithFlag
		decision.Reason = ReasonSuspiciousFlagged
	default:
		decision.Outcome = Admit
		decision.Reason = ReasonOK
	}

	evt := log.Info()
	if suspicious {
		evt = log.Warn()
	}

	evt.Str("outcome", string(decision.Outcome)).
		Float64("risk_score", riskScore).
		Bool("first_seen", firstSeen).
		Msg("resolved device identity")

	return decision
}

// storageReject maps storage failures onto retryable rejections: a timeout
// is reported distinctly from other unavailability so callers can resubmit
// with backoff.
func (r *Resolver) storageReject(log *zerolog.Logger, traceID, step string, err error) *Decision {
	reason := ReasonStorageUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonStorageTimeout
	}

	log.Error().Str("step", step).Err(err).Msg("storage failure while resolving report")

	return &Decision{
		TraceID:   traceID,
		Outcome:   Reject,
		Reason:    reason,
		Retryable: true,
	}
}
