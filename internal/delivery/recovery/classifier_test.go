package recovery

import (
	"testing"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code, message, detail string
		expect                domain.ErrorCategory
	}{
		{"ETIMEDOUT", "request failed", "", domain.ErrorTimeout},
		{"", "context deadline exceeded", "", domain.ErrorTimeout},
		{"ECONNREFUSED", "dial tcp 10.0.0.1:443", "", domain.ErrorNetwork},
		{"", "read: connection reset by peer", "", domain.ErrorNetwork},
		{"", "npm ERR! code ECONNRESET", "", domain.ErrorNetwork},
		{"", "container OOMKilled", "", domain.ErrorResource},
		{"", "write /tmp/build: no space left on device", "", domain.ErrorResource},
		{"403", "request rejected", "", domain.ErrorPermission},
		{"", "Permission denied (publickey)", "", domain.ErrorPermission},
		{"", "Cannot find module 'react-dom'", "", domain.ErrorDependency},
		{"", "vercel API: 429 Too Many Requests", "", domain.ErrorExternalService},
		{"503", "", "", domain.ErrorExternalService},
		{"", "missing required environment variable DATABASE_URL", "", domain.ErrorConfiguration},
		{"", "build failed", "SyntaxError: Unexpected end of input", domain.ErrorCode},
		{"", "seed step failed", "invalid JSON in fixtures.json", domain.ErrorData},
		{"", "something odd happened", "", domain.ErrorUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.code, tt.message, tt.detail); got != tt.expect {
			t.Errorf("Classify(%q, %q, %q) = %s, want %s", tt.code, tt.message, tt.detail, got, tt.expect)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(nil)
	first := c.Classify("", "dial tcp: lookup registry.npmjs.org: no such host", "")
	for i := 0; i < 1000; i++ {
		if got := c.Classify("", "dial tcp: lookup registry.npmjs.org: no such host", ""); got != first {
			t.Fatalf("iteration %d: expected %s, got %s", i, first, got)
		}
	}
	if first != domain.ErrorNetwork {
		t.Errorf("expected network, got %s", first)
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	c := NewClassifier([]Rule{
		{Category: domain.ErrorData, Patterns: []string{"Boom"}},
		{Category: domain.ErrorCode, Patterns: []string{"boom"}},
	})
	if got := c.Classify("", "BOOM", ""); got != domain.ErrorData {
		t.Errorf("expected data_error, got %s", got)
	}
}

func TestCatalog_CandidatesSortedAndFallback(t *testing.T) {
	catalog := Catalog{
		domain.ErrorNetwork: {
			{Kind: domain.StrategyEscalate, Priority: 3},
			{Kind: domain.StrategyRetry, Priority: 1},
			{Kind: domain.StrategyFallback, Priority: 2},
		},
		domain.ErrorUnknown: {
			{Kind: domain.StrategyAbort, Priority: 1},
		},
	}

	got := catalog.Candidates(domain.ErrorNetwork)
	if got[0].Kind != domain.StrategyRetry || got[1].Kind != domain.StrategyFallback || got[2].Kind != domain.StrategyEscalate {
		t.Errorf("unexpected order: %+v", got)
	}
	if catalog[domain.ErrorNetwork][0].Kind != domain.StrategyEscalate {
		t.Error("Candidates must not reorder the catalog in place")
	}

	fallback := catalog.Candidates(domain.ErrorPermission)
	if len(fallback) != 1 || fallback[0].Kind != domain.StrategyAbort {
		t.Errorf("expected unknown list for missing category, got %+v", fallback)
	}
}

func TestDefaultCatalog_CoversEveryCategory(t *testing.T) {
	catalog := DefaultCatalog()
	for cat := range Descriptions {
		if len(catalog[cat]) == 0 {
			t.Errorf("no strategies for %s", cat)
		}
	}
}

func TestBackoff_DelayWithJitter(t *testing.T) {
	b := NewBackoff(42)
	for attempt := 0; attempt < 4; attempt++ {
		base := float64(1<<attempt) * 1e9
		d := float64(b.Delay(1e9, attempt))
		if d < base || d >= base*1.2 {
			t.Errorf("attempt %d: delay %v outside [%v, %v)", attempt, d, base, base*1.2)
		}
	}

	b.MaxDelay = 3e9
	if d := b.Delay(1e9, 10); d != 3e9 {
		t.Errorf("expected cap at 3s, got %v", d)
	}
	if d := b.Delay(0, 3); d != 0 {
		t.Errorf("expected zero delay for zero base, got %v", d)
	}
}

func TestBackoff_SeedReproducible(t *testing.T) {
	a, b := NewBackoff(7), NewBackoff(7)
	for i := 0; i < 10; i++ {
		if da, db := a.Delay(1e9, 1), b.Delay(1e9, 1); da != db {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, da, db)
		}
	}
}
