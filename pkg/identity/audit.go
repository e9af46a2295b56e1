package identity

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gridpulse/devicegate/pkg/logger"
	"github.com/gridpulse/devicegate/pkg/models"
)

const (
	auditPageSize    = 256
	auditConcurrency = 8
)

// Audit finding issue codes.
const (
	IssueSuspicious    = "suspicious fingerprint"
	IssueNotAuthorized = "mac not active in whitelist"
)

// AuditStore pages through the stored fingerprint baseline.
type AuditStore interface {
	ListFingerprints(ctx context.Context, limit, offset int) ([]*models.DeviceFingerprint, error)
}

// WhitelistChecker answers active-membership queries during an audit pass.
type WhitelistChecker interface {
	IsAuthorized(ctx context.Context, mac string) (bool, error)
}

// Finding is one fingerprint flagged by an audit sweep.
type Finding struct {
	MACAddress string  `json:"mac_address"`
	Issue      string  `json:"issue"`
	RiskScore  float64 `json:"risk_score"`
}

// Auditor re-scans the stored fingerprint baseline, surfacing suspicious
// rows and rows whose MAC is no longer active in the whitelist.
type Auditor struct {
	store     AuditStore
	whitelist WhitelistChecker
	logger    logger.Logger
}

// NewAuditor builds an Auditor.
func NewAuditor(store AuditStore, wl WhitelistChecker, log logger.Logger) *Auditor {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Auditor{store: store, whitelist: wl, logger: log}
}

// Run sweeps every stored fingerprint with bounded concurrency and returns
// the findings sorted by MAC address.
func (a *Auditor) Run(ctx context.Context) ([]Finding, error) {
	var (
		mu       sync.Mutex
		findings []Finding
	)

	for offset := 0; ; offset += auditPageSize {
		page, err := a.store.ListFingerprints(ctx, auditPageSize, offset)
		if err != nil {
			return nil, err
		}

		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(auditConcurrency)

		for _, fp := range page {
			fp := fp
			g.Go(func() error {
				found, err := a.checkFingerprint(gctx, fp)
				if err != nil {
					return err
				}

				if len(found) > 0 {
					mu.Lock()
					findings = append(findings, found...)
					mu.Unlock()
				}

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		if len(page) < auditPageSize {
			break
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].MACAddress == findings[j].MACAddress {
			return findings[i].Issue < findings[j].Issue
		}

		return findings[i].MACAddress < findings[j].MACAddress
	})

	a.logger.Info().Int("findings", len(findings)).Msg("fingerprint audit sweep complete")

	return findings, nil
}

func (a *Auditor) checkFingerprint(ctx context.Context, fp *models.DeviceFingerprint) ([]Finding, error) {
	var found []Finding

	if fp.IsSuspicious {
		found = append(found, Finding{
			MACAddress: fp.MACAddress,
			Issue:      IssueSuspicious,
			RiskScore:  fp.RiskScore,
		})
	}

	authorized, err := a.whitelist.IsAuthorized(ctx, fp.MACAddress)
	if err != nil {
		return nil, err
	}

	if !authorized {
		found = append(found, Finding{
			MACAddress: fp.MACAddress,
			Issue:      IssueNotAuthorized,
			RiskScore:  fp.RiskScore,
		})
	}

	return found, nil
}
