package domain

import "testing"

func TestClassifyCompletion(t *testing.T) {
	cases := []struct {
		name        string
		duration    int
		hasArtifact bool
		want        CompletionState
	}{
		{"instant hangup no artifact", 5, false, StateAbandoned},
		{"instant hangup with artifact", 5, true, StateAbandoned},
		{"short call no artifact", 10, false, StateAbandoned},
		{"short call with artifact", 10, true, StateCompleted},
		{"long call no artifact", 20, false, StatePartial},
		{"long call with artifact", 20, true, StateCompleted},
		{"zero duration", 0, false, StateAbandoned},
		{"boundary eight seconds", 8, true, StateAbandoned},
		{"boundary nine seconds", 9, true, StateCompleted},
		{"boundary fifteen seconds", 15, false, StatePartial},
		{"boundary fourteen seconds", 14, false, StateAbandoned},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyCompletion(tc.duration, tc.hasArtifact)
			if got != tc.want {
				t.Fatalf("ClassifyCompletion(%d, %v) = %q, want %q", tc.duration, tc.hasArtifact, got, tc.want)
			}
		})
	}
}

func TestEnforceArtifactInvariant_CorrectsPartialWithoutArtifact(t *testing.T) {
	state, corrected := EnforceArtifactInvariant(StatePartial, false)
	if state != StateAbandoned {
		t.Fatalf("expected abandoned, got %q", state)
	}
	if !corrected {
		t.Fatal("expected correction to be reported")
	}
}

func TestEnforceArtifactInvariant_LeavesOtherStatesAlone(t *testing.T) {
	for _, s := range []CompletionState{StateAbandoned, StateCompleted} {
		state, corrected := EnforceArtifactInvariant(s, false)
		if state != s || corrected {
			t.Fatalf("state %q was unexpectedly altered to %q (corrected=%v)", s, state, corrected)
		}
	}

	state, corrected := EnforceArtifactInvariant(StatePartial, true)
	if state != StatePartial || corrected {
		t.Fatalf("partial with artifact should stand, got %q (corrected=%v)", state, corrected)
	}
}

func TestLongDuration(t *testing.T) {
	if LongDuration(479) {
		t.Fatal("479s should not be flagged")
	}
	if !LongDuration(480) {
		t.Fatal("480s should be flagged")
	}
	if !LongDuration(1200) {
		t.Fatal("1200s should be flagged")
	}
}
