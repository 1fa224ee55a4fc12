package billing

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCanceled, true},
		{StatusProcessing, StatusApproved, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusProcessing, StatusCanceled, false},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusFailed, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusApproved, false},
		{StatusFailed, StatusCompleted, false},
		{StatusCanceled, StatusPending, false},
		// same-state writes are no-ops, always allowed
		{StatusCompleted, StatusCompleted, true},
		{StatusFailed, StatusFailed, true},
		{StatusPending, StatusPending, true},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCanceled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusProcessing, StatusApproved} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestTransitionError(t *testing.T) {
	err := &TransitionError{From: StatusCompleted, To: StatusFailed}
	if err.Error() != "invalid status transition: completed -> failed" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
