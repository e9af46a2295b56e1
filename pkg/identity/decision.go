package identity

// Outcome is the terminal state of one resolver invocation.
type Outcome string

const (
	// Admit accepts the report without reservation.
	Admit Outcome = "admit"
	// AdmitWithFlag accepts the report but marks it for downstream review.
	AdmitWithFlag Outcome = "admit_with_flag"
	// Reject refuses the report.
	Reject Outcome = "reject"
)

// Stable machine-readable reason codes attached to every decision.
const (
	ReasonOK                  = "ok"
	ReasonSuspiciousFlagged   = "suspicious fingerprint"
	ReasonSuspiciousRejected  = "suspicious fingerprint rejected"
	ReasonFingerprintDisabled = "fingerprint check disabled"
	ReasonInvalidMAC          = "invalid mac address"
	ReasonNotAuthorized       = "mac not authorized"
	ReasonDeactivated         = "device deactivated"
	ReasonInvalidCertificate  = "invalid device certificate"
	ReasonStorageTimeout      = "storage timeout"
	ReasonStorageUnavailable  = "storage unavailable"
)

// Decision is the outcome of evaluating one report. It is returned to the
// ingestion endpoint and is not persisted beyond the updated fingerprint row.
type Decision struct {
	// TraceID correlates the decision with its log lines.
	TraceID    string  `json:"trace_id"`
	Outcome    Outcome `json:"outcome"`
	RiskScore  float64 `json:"risk_score"`
	Suspicious bool    `json:"suspicious"`
	Reason     string  `json:"reason"`

	// Retryable marks rejections caused by storage trouble rather than by
	// policy; the caller may resubmit the report.
	Retryable bool `json:"retryable,omitempty"`
}

// Admitted reports whether the underlying telemetry write should proceed.
func (d *Decision) Admitted() bool {
	return d.Outcome == Admit || d.Outcome == AdmitWithFlag
}
