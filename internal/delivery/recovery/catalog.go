package recovery

import (
	"slices"
	"time"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

// Action is one candidate recovery step in the catalog.
type Action struct {
	Kind     domain.StrategyKind
	Name     string
	Priority int // lower is tried first
	// SuccessRate is informational only.
	SuccessRate          float64
	MaxAttempts          int
	RequiresConfirmation bool
	Delay                time.Duration
}

// Catalog lists candidate actions per error category.
type Catalog map[domain.ErrorCategory][]Action

// Candidates returns the actions for cat sorted by priority. Categories
// without an entry use the unknown list.
func (c Catalog) Candidates(cat domain.ErrorCategory) []Action {
	actions, ok := c[cat]
	if !ok {
		actions = c[domain.ErrorUnknown]
	}
	sorted := slices.Clone(actions)
	slices.SortStableFunc(sorted, func(a, b Action) int { return a.Priority - b.Priority })
	return sorted
}

func escalate(priority int) Action {
	return Action{
		Kind:        domain.StrategyEscalate,
		Name:        "Escalate to support",
		Priority:    priority,
		SuccessRate: 0.95,
		MaxAttempts: 1,
	}
}

// DefaultCatalog returns the built-in strategy table.
func DefaultCatalog() Catalog {
	return Catalog{
		domain.ErrorNetwork: {
			{Kind: domain.StrategyRetryWithBackoff, Name: "Retry with backoff", Priority: 1, SuccessRate: 0.8, MaxAttempts: 3, Delay: 2 * time.Second},
			{Kind: domain.StrategyRetryWithDelay, Name: "Retry after pause", Priority: 2, SuccessRate: 0.5, MaxAttempts: 1, Delay: 30 * time.Second},
			escalate(3),
		},
		domain.ErrorTimeout: {
			{Kind: domain.StrategyRetryWithBackoff, Name: "Retry with backoff", Priority: 1, SuccessRate: 0.7, MaxAttempts: 2, Delay: 5 * time.Second},
			{Kind: domain.StrategyRestart, Name: "Restart stage from scratch", Priority: 2, SuccessRate: 0.5, MaxAttempts: 1},
			escalate(3),
		},
		domain.ErrorResource: {
			{Kind: domain.StrategyRetryWithDelay, Name: "Wait for resources", Priority: 1, SuccessRate: 0.6, MaxAttempts: 2, Delay: 30 * time.Second},
			{Kind: domain.StrategyFallback, Name: "Run with reduced resources", Priority: 2, SuccessRate: 0.5, MaxAttempts: 1},
			escalate(3),
		},
		domain.ErrorDependency: {
			{Kind: domain.StrategyRetry, Name: "Reinstall dependencies", Priority: 1, SuccessRate: 0.6, MaxAttempts: 1},
			{Kind: domain.StrategyFallback, Name: "Use pinned dependency versions", Priority: 2, SuccessRate: 0.5, MaxAttempts: 1},
			escalate(3),
		},
		domain.ErrorPermission: {
			escalate(1),
		},
		domain.ErrorConfiguration: {
			{Kind: domain.StrategyRollback, Name: "Roll back to last good configuration", Priority: 1, SuccessRate: 0.6, MaxAttempts: 1, RequiresConfirmation: true},
			escalate(2),
		},
		domain.ErrorExternalService: {
			{Kind: domain.StrategyRetryWithBackoff, Name: "Retry with backoff", Priority: 1, SuccessRate: 0.7, MaxAttempts: 3, Delay: 5 * time.Second},
			{Kind: domain.StrategyFallback, Name: "Switch to fallback provider", Priority: 2, SuccessRate: 0.6, MaxAttempts: 1},
			{Kind: domain.StrategySkip, Name: "Skip optional integration", Priority: 3, SuccessRate: 0.9, MaxAttempts: 1, RequiresConfirmation: true},
			escalate(4),
		},
		domain.ErrorCode: {
			{Kind: domain.StrategyRollback, Name: "Roll back to previous build", Priority: 1, SuccessRate: 0.7, MaxAttempts: 1, RequiresConfirmation: true},
			escalate(2),
		},
		domain.ErrorData: {
			{Kind: domain.StrategyRollback, Name: "Restore previous data", Priority: 1, SuccessRate: 0.5, MaxAttempts: 1, RequiresConfirmation: true},
			{Kind: domain.StrategySkip, Name: "Skip data step", Priority: 2, SuccessRate: 0.8, MaxAttempts: 1, RequiresConfirmation: true},
			escalate(3),
		},
		domain.ErrorUnknown: {
			{Kind: domain.StrategyRetry, Name: "Retry once", Priority: 1, SuccessRate: 0.3, MaxAttempts: 1},
			escalate(2),
		},
	}
}
