package domain

import (
	"fmt"
	"time"
)

// Role is the functional category a participant authenticated with.
type Role string

const (
	RoleAdmin           Role = "admin"
	RolePharmacyStaff   Role = "pharmacy_staff"
	RoleDeliveryOfficer Role = "delivery_officer"
	RoleCustomer        Role = "customer"
)

var knownRoles = map[Role]struct{}{
	RoleAdmin:           {},
	RolePharmacyStaff:   {},
	RoleDeliveryOfficer: {},
	RoleCustomer:        {},
}

func Roles() []Role {
	return []Role{RoleAdmin, RolePharmacyStaff, RoleDeliveryOfficer, RoleCustomer}
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// Identity is what an authenticate step resolves a session to.
type Identity struct {
	UserID     string
	Role       Role
	PharmacyID string
}

// Connection is the live binding of a user to a transport session.
type Connection struct {
	UserID          string
	SessionID       string
	Role            Role
	PharmacyID      string
	AuthenticatedAt time.Time
}

// Order is the read-only snapshot handed over by order management.
// Empty assignment fields mean "not assigned yet".
type Order struct {
	ID                        string    `json:"id"`
	CustomerID                string    `json:"customer_id,omitempty"`
	AssignedPharmacyID        string    `json:"assigned_pharmacy_id,omitempty"`
	AssignedDeliveryOfficerID string    `json:"assigned_delivery_officer_id,omitempty"`
	Status                    string    `json:"status,omitempty"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

const (
	UpdateCreated   = "created"
	UpdateUpdated   = "updated"
	UpdateAssigned  = "assigned"
	UpdateCancelled = "cancelled"
)
