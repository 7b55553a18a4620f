// Package lifecycle implements the appointment status state machine and
// the role permission table guarding each transition.
package lifecycle

import (
	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/schederr"
)

// Role is the authenticated caller's role.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleProvider     Role = "provider"
	RoleReceptionist Role = "receptionist"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleReceptionist:
		return true
	}
	return false
}

// Actor is the identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

type edge struct {
	from, to model.Status
}

// allowed is the permission table: which roles may drive each edge.
// New transitions are added as rows here, not as new control flow.
var allowed = map[edge][]Role{
	{model.StatusPending, model.StatusConfirmed}:   {RoleProvider, RoleReceptionist},
	{model.StatusPending, model.StatusCanceled}:    {RoleCustomer, RoleProvider, RoleReceptionist},
	{model.StatusConfirmed, model.StatusCompleted}: {RoleProvider, RoleReceptionist},
	{model.StatusConfirmed, model.StatusCanceled}:  {RoleProvider, RoleReceptionist},
}

// Transition validates the from→to edge for the actor. It returns
// InvalidTransitionError when the edge does not exist and
// PermissionDeniedError when it exists but the actor's role may not
// drive it.
func Transition(from, to model.Status, actor Actor) error {
	roles, ok := allowed[edge{from, to}]
	if !ok {
		return &schederr.InvalidTransitionError{From: string(from), To: string(to)}
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "transition appointment to " + string(to)}
}

// CanReschedule reports whether an appointment in the given status may
// be rescheduled. Reschedule is not a status transition; it is allowed
// only while the appointment is still live.
func CanReschedule(status model.Status) bool {
	return status == model.StatusPending || status == model.StatusConfirmed
}
