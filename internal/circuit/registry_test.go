package circuit

import "testing"

func TestRegistryGetCreatesOnce(t *testing.T) {
	r := NewRegistry()

	b1 := r.Get(DefaultSettings("backendService"))
	b2 := r.Get(Settings{Name: "backendService", FailureRateThreshold: 0.9})

	if b1 != b2 {
		t.Error("Get returned a different breaker instance for the same name")
	}
	if b1.settings.FailureRateThreshold != 0.5 {
		t.Error("second Get call's settings should not override the first")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	r.Get(DefaultSettings("backendService"))
	r.Get(DefaultSettings("criticalService"))

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snap))
	}
	if snap["backendService"] != StateClosed {
		t.Errorf("backendService state = %v, want CLOSED", snap["backendService"])
	}
}
