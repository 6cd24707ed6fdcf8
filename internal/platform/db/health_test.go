package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSONShape(t *testing.T) {
	stats := PoolStats{
		TotalConns:    4,
		IdleConns:     3,
		AcquiredConns: 1,
		MaxConns:      8,
		AcquireCount:  120,
		AcquireWait:   "250ms",
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal stats: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_wait"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("stats JSON missing %q: %s", key, raw)
		}
	}
	if decoded["acquire_wait"] != "250ms" {
		t.Errorf("acquire_wait = %v, want 250ms", decoded["acquire_wait"])
	}
}
