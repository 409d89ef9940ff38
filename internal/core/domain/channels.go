package domain

const (
	rolePrefix     = "role:"
	pharmacyPrefix = "pharmacy:"
	userPrefix     = "user:"
)

// RoleChannel reaches every session that authenticated with r.
func RoleChannel(r Role) string { return rolePrefix + string(r) }

// PharmacyChannel reaches the staff sessions of a single pharmacy location.
func PharmacyChannel(pharmacyID string) string { return pharmacyPrefix + pharmacyID }

// UserChannel reaches the one session currently bound to userID.
func UserChannel(userID string) string { return userPrefix + userID }
