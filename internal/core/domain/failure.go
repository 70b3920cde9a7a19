package domain

// FailureCategory describes which part of a delivery failed.
type FailureCategory string

const (
	FailureBuild             FailureCategory = "build_failed"
	FailureTest              FailureCategory = "test_failed"
	FailureDeploy            FailureCategory = "deploy_failed"
	FailureGateBlocked       FailureCategory = "gate_blocked"
	FailureTimeout           FailureCategory = "timeout"
	FailureResourceExhausted FailureCategory = "resource_exhausted"
	FailureManualCancel      FailureCategory = "manual_cancel"
	FailureDependency        FailureCategory = "dependency_failed"
	FailureUnknown           FailureCategory = "unknown"
)

// Retryable reports whether failures of this category may be retried
// automatically. A cancellation stays cancelled and a blocked gate is
// never bypassed.
func (c FailureCategory) Retryable() bool {
	return c != FailureManualCancel && c != FailureGateBlocked
}

// FailureLabels are the user-facing names of job failure categories.
var FailureLabels = map[FailureCategory]string{
	FailureBuild:             "Build failed",
	FailureTest:              "Tests failed",
	FailureDeploy:            "Deployment failed",
	FailureGateBlocked:       "Quality gate blocked",
	FailureTimeout:           "Timed out",
	FailureResourceExhausted: "Resources exhausted",
	FailureManualCancel:      "Cancelled by operator",
	FailureDependency:        "Dependency failed",
	FailureUnknown:           "Unknown failure",
}

// Label returns the user-facing name of c.
func (c FailureCategory) Label() string {
	if l, ok := FailureLabels[c]; ok {
		return l
	}
	return FailureLabels[FailureUnknown]
}

// ErrorCategory is the fault-classifier view of why something failed.
type ErrorCategory string

const (
	ErrorNetwork         ErrorCategory = "network"
	ErrorTimeout         ErrorCategory = "timeout"
	ErrorResource        ErrorCategory = "resource"
	ErrorDependency      ErrorCategory = "dependency"
	ErrorPermission      ErrorCategory = "permission"
	ErrorConfiguration   ErrorCategory = "configuration"
	ErrorExternalService ErrorCategory = "external_service"
	ErrorCode            ErrorCategory = "code_error"
	ErrorData            ErrorCategory = "data_error"
	ErrorUnknown         ErrorCategory = "unknown"
)

// Failure is the last failure recorded on a job.
type Failure struct {
	Category    FailureCategory `json:"category"`
	Cause       ErrorCategory   `json:"cause,omitempty"`
	Message     string          `json:"message"`
	Detail      string          `json:"detail,omitempty"`
	Label       string          `json:"label,omitempty"`
	Remediation string          `json:"remediation,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
}
