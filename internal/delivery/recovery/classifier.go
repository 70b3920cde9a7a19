package recovery

import (
	"strings"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

// Rule maps error text to a category. A rule matches when the error code
// equals one of Codes or the combined text contains one of Patterns
// (both compared case-insensitively).
type Rule struct {
	Category domain.ErrorCategory
	Codes    []string
	Patterns []string
}

// DefaultRules is the built-in ordered rule list. Earlier rules win.
var DefaultRules = []Rule{
	{
		Category: domain.ErrorTimeout,
		Codes:    []string{"ETIMEDOUT", "ESOCKETTIMEDOUT"},
		Patterns: []string{"timeout", "timed out", "deadline exceeded"},
	},
	{
		Category: domain.ErrorNetwork,
		Codes:    []string{"ECONNREFUSED", "ECONNRESET", "ENOTFOUND", "EAI_AGAIN", "EPIPE"},
		Patterns: []string{
			"connection refused", "connection reset", "no such host", "network",
			"socket hang up", "dns", "broken pipe", "econnrefused", "econnreset",
		},
	},
	{
		Category: domain.ErrorResource,
		Codes:    []string{"ENOMEM", "ENOSPC", "EMFILE"},
		Patterns: []string{
			"out of memory", "oomkilled", "no space left", "disk full", "quota exceeded",
			"resource exhausted", "too many open files",
		},
	},
	{
		Category: domain.ErrorPermission,
		Codes:    []string{"EACCES", "EPERM", "401", "403"},
		Patterns: []string{"permission denied", "access denied", "forbidden", "unauthorized"},
	},
	{
		Category: domain.ErrorDependency,
		Patterns: []string{
			"npm err", "cannot find module", "module not found", "package not found",
			"dependency", "peer dep", "version conflict", "could not resolve",
		},
	},
	{
		Category: domain.ErrorExternalService,
		Codes:    []string{"429", "502", "503", "504"},
		Patterns: []string{
			"rate limit", "too many requests", "service unavailable", "bad gateway",
			"upstream", "third-party", "external service",
		},
	},
	{
		Category: domain.ErrorConfiguration,
		Patterns: []string{
			"invalid configuration", "misconfigured", "not configured", "missing required",
			"environment variable", "env var", "config error",
		},
	},
	{
		Category: domain.ErrorCode,
		Patterns: []string{
			"syntax error", "syntaxerror", "typeerror", "referenceerror", "compilation failed",
			"compile error", "nil pointer", "panic:", "undefined is not",
		},
	},
	{
		Category: domain.ErrorData,
		Patterns: []string{
			"invalid json", "unexpected token", "parse error", "validation failed",
			"schema", "constraint", "duplicate key", "malformed",
		},
	},
}

// Classifier maps raw errors to categories. It holds no mutable state, so
// identical input always yields the identical category.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules. A nil slice uses DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		n := Rule{Category: r.Category}
		for _, c := range r.Codes {
			n.Codes = append(n.Codes, strings.ToLower(c))
		}
		for _, p := range r.Patterns {
			n.Patterns = append(n.Patterns, strings.ToLower(p))
		}
		normalized[i] = n
	}
	return &Classifier{rules: normalized}
}

// Classify returns the category of the first matching rule, or unknown.
func (c *Classifier) Classify(code, message, detail string) domain.ErrorCategory {
	code = strings.ToLower(strings.TrimSpace(code))
	text := strings.ToLower(code + " " + message + " " + detail)

	for _, r := range c.rules {
		for _, want := range r.Codes {
			if code == want {
				return r.Category
			}
		}
		for _, p := range r.Patterns {
			if strings.Contains(text, p) {
				return r.Category
			}
		}
	}
	return domain.ErrorUnknown
}

var defaultClassifier = NewClassifier(nil)

// Classify uses the default rule list.
func Classify(code, message, detail string) domain.ErrorCategory {
	return defaultClassifier.Classify(code, message, detail)
}
