package domain

// UserUpdated is the domain event published after every administrative
// mutation of a user. It is immutable once constructed; delete mutations
// force the balance to zero. The payload intentionally carries no version
// or sequence number, matching the consumer contract.
type UserUpdated struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}

// NewUserUpdated builds the event for an update mutation.
func NewUserUpdated(u *User) UserUpdated {
	return UserUpdated{UserID: u.ID, Email: u.Email, Balance: u.Balance}
}

// NewUserDeleted builds the event for a delete mutation. Balance is always
// zero regardless of the user's prior balance.
func NewUserDeleted(u *User) UserUpdated {
	return UserUpdated{UserID: u.ID, Email: u.Email, Balance: 0}
}
