package idhash

import "testing"

func TestComputeTweetID_Deterministic(t *testing.T) {
	a := ComputeTweetID("1881234567890", "acct-1")
	b := ComputeTweetID("1881234567890", "acct-1")
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex hash, got %d chars", len(a))
	}
}

func TestComputeTweetID_DistinctInputs(t *testing.T) {
	tests := []struct {
		name       string
		externalID string
		accountID  string
	}{
		{"different external id", "111", "acct-1"},
		{"different account", "1881234567890", "acct-2"},
	}

	base := ComputeTweetID("1881234567890", "acct-1")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTweetID(tt.externalID, tt.accountID)
			if got == base {
				t.Errorf("expected distinct ID for %s/%s", tt.externalID, tt.accountID)
			}
		})
	}
}

func TestComputeIDs_NoCrossKindCollision(t *testing.T) {
	// The same raw components hashed under different kinds must not collide.
	tweet := ComputeTweetID("x", "y")
	signal := ComputeSignalID("x", "y")
	if tweet == signal {
		t.Error("tweet and signal IDs collided for identical components")
	}
}

func TestComputeTradeID_AttemptDisambiguation(t *testing.T) {
	first := ComputeTradeID("sig-1", "user-1", 1700000000000)
	second := ComputeTradeID("sig-1", "user-1", 1700000060000)
	if first == second {
		t.Error("expected distinct trade IDs for distinct attempt times")
	}
}
