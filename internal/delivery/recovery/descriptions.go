package recovery

import "github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"

// Description is the user-facing explanation of an error category.
type Description struct {
	Label       string
	Remediation string
}

// Descriptions holds the static label and suggested remediation per category.
var Descriptions = map[domain.ErrorCategory]Description{
	domain.ErrorNetwork: {
		Label:       "Network problem",
		Remediation: "Check connectivity to the build and hosting providers, then retry.",
	},
	domain.ErrorTimeout: {
		Label:       "Operation timed out",
		Remediation: "Retry later; if it keeps timing out, reduce the stage workload.",
	},
	domain.ErrorResource: {
		Label:       "Insufficient resources",
		Remediation: "Free disk or memory on the build host or raise its limits.",
	},
	domain.ErrorDependency: {
		Label:       "Dependency problem",
		Remediation: "Check package versions and the lockfile, then reinstall dependencies.",
	},
	domain.ErrorPermission: {
		Label:       "Permission denied",
		Remediation: "Grant the deployment credentials access to the target resource.",
	},
	domain.ErrorConfiguration: {
		Label:       "Configuration error",
		Remediation: "Fix the project configuration or environment variables.",
	},
	domain.ErrorExternalService: {
		Label:       "External service unavailable",
		Remediation: "Wait for the third-party service to recover, then retry.",
	},
	domain.ErrorCode: {
		Label:       "Code error",
		Remediation: "A developer needs to fix the generated code before redeploying.",
	},
	domain.ErrorData: {
		Label:       "Data error",
		Remediation: "Validate the input data and schema, then retry.",
	},
	domain.ErrorUnknown: {
		Label:       "Unknown error",
		Remediation: "Contact support with the job id.",
	},
}

// Describe returns the description for cat, falling back to unknown.
func Describe(cat domain.ErrorCategory) Description {
	if d, ok := Descriptions[cat]; ok {
		return d
	}
	return Descriptions[domain.ErrorUnknown]
}
