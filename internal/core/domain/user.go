package domain

import "time"

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// User is the authoritative identity record. Username and email are kept in
// sync by the administrative update path (both always hold the same value).
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Balance      int64     `json:"balance"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedOn    time.Time `json:"createdOn"`
}

// HasRole reports whether the user currently holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Role is a named grant. Roles are created once by the seeder and never
// mutated or deleted by this service.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
