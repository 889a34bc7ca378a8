package domain

import "testing"

func TestCanTransition_ForwardMoves(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusRejected, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusRejected, false},
		{StatusRejected, StatusPending, false},
		{StatusRejected, StatusCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Fatal("pending and processing must not be terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusRejected.IsTerminal() {
		t.Fatal("completed and rejected must be terminal")
	}
}

func TestParseStatus_RejectsLegacyVocabulary(t *testing.T) {
	for _, raw := range []string{"en_attente", "en_cours", "terminee", "rejetee", ""} {
		if _, ok := ParseStatus(raw); ok {
			t.Errorf("ParseStatus(%q) accepted a non-canonical status", raw)
		}
	}
}
