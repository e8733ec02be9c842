package models

// UserRole represents the role of a user within a tenant
type UserRole string

const (
	RoleNormal UserRole = "normal"
	RoleAdmin  UserRole = "admin"
)

// User represents a caller identity. AvailableCredits is the balance the
// credit admission policy gates on; the balance itself is mutated by the
// ledger reconciler, never by the pipeline core.
type User struct {
	ID               string   `json:"_id" db:"id"`
	FirstName        string   `json:"firstName,omitempty" db:"first_name"`
	Email            string   `json:"email,omitempty" db:"email"`
	Role             UserRole `json:"role,omitempty" db:"role"`
	Type             string   `json:"type,omitempty" db:"type"`
	AvailableCredits int64    `json:"availableCredits" db:"available_credits"`
	BusinessID       string   `json:"businessId,omitempty" db:"business_id"`
}

// IsAdmin returns true if the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Author is the authorship stamp embedded into created entities.
type Author struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName,omitempty"`
}

// AnonymousAuthorID is stamped when no caller identity is present.
const AnonymousAuthorID = "anonymous"

// AuthorOf builds the authorship stamp for a caller, falling back to the
// anonymous author when the caller is nil or has no id.
func AuthorOf(u *User) Author {
	if u == nil || u.ID == "" {
		return Author{ID: AnonymousAuthorID}
	}
	return Author{ID: u.ID, FirstName: u.FirstName}
}
