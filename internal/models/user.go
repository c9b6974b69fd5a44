package models

// Role gates write access to the contribution log.
type Role string

const (
	RoleReader     Role = "reader"
	RolePublisher  Role = "publisher"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReader, RolePublisher, RoleSuperAdmin:
		return true
	}
	return false
}

// CanPublish reports whether the role may create and edit content.
func (r Role) CanPublish() bool {
	return r == RolePublisher || r == RoleSuperAdmin
}

// CanManageUsers reports whether the role may administer other accounts.
func (r Role) CanManageUsers() bool {
	return r == RoleSuperAdmin
}

// User is an authenticated account. PasswordHash is bcrypt and never
// serialized.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
}
