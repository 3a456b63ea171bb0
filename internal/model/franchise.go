package model

// Franchise is a named collection of stores run by one or more admin
// users.  Admins are users holding a franchisee role whose ObjectID is
// the franchise id.  This struct corresponds to a row in the
// `franchises` table plus its stores and admins.
type Franchise struct {
	ID     uint64           `json:"id"`
	Name   string           `json:"name"`
	Admins []FranchiseAdmin `json:"admins,omitempty"`
	Stores []Store          `json:"stores"`
}

// FranchiseAdmin is the public view of a user administering a franchise.
type FranchiseAdmin struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HasAdmin reports whether the user identified by id or email is an
// admin of the franchise.
func (f Franchise) HasAdmin(id uint64, email string) bool {
	for _, a := range f.Admins {
		if a.ID == id || (email != "" && a.Email == email) {
			return true
		}
	}
	return false
}

// Store represents a row in the `stores` table.
type Store struct {
	ID          uint64 `json:"id"`
	FranchiseID uint64 `json:"franchiseId"`
	Name        string `json:"name"`
}
