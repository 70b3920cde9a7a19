package storage

import (
	"encoding/json"
	"testing"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
)

func TestDecode_KeepsIntegerOptions(t *testing.T) {
	data, err := json.Marshal(&domain.Job{
		ID:      "job-1",
		Options: map[string]any{"replicas": 3, "build_id": int64(9007199254740993)},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var job domain.Job
	if err := Decode(data, &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	n, ok := job.Options["replicas"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", job.Options["replicas"])
	}
	if v, err := n.Int64(); err != nil || v != 3 {
		t.Errorf("expected 3, got %v (%v)", v, err)
	}
	if got := job.Options["build_id"]; got != json.Number("9007199254740993") {
		t.Errorf("expected large id to survive exactly, got %v", got)
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	var job domain.Job
	if err := Decode([]byte("{not json"), &job); err == nil {
		t.Error("expected an error for malformed input")
	}
}
