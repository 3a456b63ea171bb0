package model

// Role names a capacity a user may act in.  Roles are stored one per
// row in the `user_roles` table and serialized as {"role": "..."} in
// API responses.
type Role string

const (
	RoleDiner      Role = "diner"
	RoleAdmin      Role = "admin"
	RoleFranchisee Role = "franchisee"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDiner, RoleAdmin, RoleFranchisee:
		return true
	}
	return false
}

// RoleMembership is a single role granted to a user.  ObjectID is only
// set for franchisee memberships, where it holds the franchise id the
// user administers.
type RoleMembership struct {
	Role     Role   `json:"role"`
	ObjectID uint64 `json:"objectId,omitempty"`
}

// Roles is the ordered set of memberships held by a user.
type Roles []RoleMembership

// Has reports whether any membership matches role.
func (rs Roles) Has(role Role) bool {
	for _, m := range rs {
		if m.Role == role {
			return true
		}
	}
	return false
}

// Franchises returns the franchise ids carried by franchisee memberships.
func (rs Roles) Franchises() []uint64 {
	var ids []uint64
	for _, m := range rs {
		if m.Role == RoleFranchisee && m.ObjectID != 0 {
			ids = append(ids, m.ObjectID)
		}
	}
	return ids
}

// User represents an application user record as stored in the
// `users` table together with its rows from `user_roles`.
// PasswordHash is never serialized.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	Roles        – role memberships in insertion order.
type User struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Roles        Roles  `json:"roles"`
}
