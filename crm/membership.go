package crm

import innosupps "github.com/simd-personal/Inno-Supps"

// Role is a user's level of access to a workspace.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CanRead reports whether the role may read workspace data.
func (r Role) CanRead() bool { return r.Valid() }

// CanWrite reports whether the role may enqueue work or change data.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Membership grants a user a role in a workspace.
type Membership struct {
	innosupps.Entity

	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        Role   `json:"role"`
}
