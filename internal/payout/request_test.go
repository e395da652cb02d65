package payout

import "testing"

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusProcessing, StatusCompleted, StatusRejected}
	allowed := map[Status]map[Status]bool{
		StatusPending:    {StatusApproved: true, StatusRejected: true},
		StatusApproved:   {StatusProcessing: true, StatusRejected: true},
		StatusProcessing: {StatusCompleted: true},
		StatusCompleted:  {},
		StatusRejected:   {},
	}

	for _, from := range all {
		for _, to := range all {
			got := from.CanTransitionTo(to)
			want := allowed[from][to]
			if got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusRejected} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusApproved, StatusProcessing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestMethodRegistryDefaults(t *testing.T) {
	r := NewMethodRegistry()
	userID := newUUID(t)

	first, err := r.Add(Method{ID: newUUID(t), UserID: userID, Type: MethodBankTransfer})
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	if !first.IsDefault {
		t.Error("first method should become the default")
	}

	second, err := r.Add(Method{ID: newUUID(t), UserID: userID, Type: MethodMobilePay, IsDefault: true})
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if !second.IsDefault {
		t.Error("second method should be the default")
	}

	methods := r.ListByUser(userID)
	defaults := 0
	for _, m := range methods {
		if m.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Errorf("%d defaults, want exactly 1", defaults)
	}

	if _, err := r.Add(Method{ID: newUUID(t), UserID: userID, Type: "cheque"}); err == nil {
		t.Error("unknown method type accepted")
	}
}

func TestMethodVerification(t *testing.T) {
	r := NewMethodRegistry()
	m, err := r.Add(Method{ID: newUUID(t), UserID: newUUID(t), Type: MethodPayPal})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.Verified {
		t.Error("new methods must start unverified")
	}

	verified, err := r.Verify(m.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Verified {
		t.Error("method not verified after Verify")
	}

	if _, err := r.Verify(newUUID(t)); err == nil {
		t.Error("verifying unknown method succeeded")
	}
}
