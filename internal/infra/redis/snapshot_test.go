package redis

import "testing"

func TestSnapshotKeys(t *testing.T) {
	r := &SnapshotRepo{prefix: "delivery"}
	tests := map[string]string{
		r.metaKey():     "delivery:snapshot:meta",
		r.jobsKey():     "delivery:snapshot:jobs",
		r.orderKey():    "delivery:snapshot:job_order",
		r.workersKey():  "delivery:snapshot:workers",
		r.sessionsKey(): "delivery:snapshot:sessions",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("expected key %s, got %s", want, got)
		}
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Error("expected error for invalid redis URL")
	}
}
