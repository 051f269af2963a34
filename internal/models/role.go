package models

// Role is the access level attached to a profile.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleOfficial   Role = "official"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleOfficial, RoleSuperAdmin:
		return true
	}
	return false
}

// CanReviewClaims reports whether the role may change claim status.
// Super-admins manage accounts but do not review claims.
func (r Role) CanReviewClaims() bool {
	return r == RoleOfficial
}

// CanReadAllClaims reports whether the role may see claims owned by others.
func (r Role) CanReadAllClaims() bool {
	return r == RoleOfficial || r == RoleSuperAdmin
}

// CanManageAccounts reports whether the role may create officials and change roles.
func (r Role) CanManageAccounts() bool {
	return r == RoleSuperAdmin
}
