package lifecycle

import (
	"errors"
	"testing"

	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/schederr"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    model.Status
		to      model.Status
		role    Role
		wantErr string // "", "transition", or "permission"
	}{
		{"provider confirms pending", model.StatusPending, model.StatusConfirmed, RoleProvider, ""},
		{"receptionist confirms pending", model.StatusPending, model.StatusConfirmed, RoleReceptionist, ""},
		{"customer cannot confirm", model.StatusPending, model.StatusConfirmed, RoleCustomer, "permission"},
		{"customer cancels pending", model.StatusPending, model.StatusCanceled, RoleCustomer, ""},
		{"provider completes confirmed", model.StatusConfirmed, model.StatusCompleted, RoleProvider, ""},
		{"customer cannot complete", model.StatusConfirmed, model.StatusCompleted, RoleCustomer, "permission"},
		{"provider cancels confirmed", model.StatusConfirmed, model.StatusCanceled, RoleProvider, ""},
		{"customer cannot cancel confirmed", model.StatusConfirmed, model.StatusCanceled, RoleCustomer, "permission"},
		{"pending cannot complete", model.StatusPending, model.StatusCompleted, RoleProvider, "transition"},
		{"completed is terminal", model.StatusCompleted, model.StatusCanceled, RoleProvider, "transition"},
		{"canceled is terminal", model.StatusCanceled, model.StatusPending, RoleReceptionist, "transition"},
		{"cancel twice is rejected", model.StatusCanceled, model.StatusCanceled, RoleCustomer, "transition"},
		{"no self loop", model.StatusPending, model.StatusPending, RoleProvider, "transition"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Transition(c.from, c.to, Actor{ID: "x", Role: c.role})
			switch c.wantErr {
			case "":
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			case "transition":
				var e *schederr.InvalidTransitionError
				if !errors.As(err, &e) {
					t.Fatalf("got %v, want InvalidTransitionError", err)
				}
				if e.From != string(c.from) || e.To != string(c.to) {
					t.Fatalf("error does not identify the edge: %+v", e)
				}
			case "permission":
				var e *schederr.PermissionDeniedError
				if !errors.As(err, &e) {
					t.Fatalf("got %v, want PermissionDeniedError", err)
				}
			}
		})
	}
}

func TestCanReschedule(t *testing.T) {
	if !CanReschedule(model.StatusPending) || !CanReschedule(model.StatusConfirmed) {
		t.Fatal("live appointments must be reschedulable")
	}
	if CanReschedule(model.StatusCompleted) || CanReschedule(model.StatusCanceled) {
		t.Fatal("terminal appointments must not be reschedulable")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []Role{RoleCustomer, RoleProvider, RoleReceptionist} {
		if !ValidRole(r) {
			t.Fatalf("%s should be valid", r)
		}
	}
	if ValidRole("admin") {
		t.Fatal("unknown role accepted")
	}
}
