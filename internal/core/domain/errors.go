package domain

import "errors"

// Identity store errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrRoleNotFound = errors.New("role not found")
)

// Authentication and authorization errors. ErrInvalidCredentials is the
// uniform outcome for both unknown-user and wrong-password so the network
// boundary cannot distinguish the two.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access forbidden")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrInvalidToken       = errors.New("invalid token")
)

// Protocol errors, surfaced with OAuth error codes at the token endpoint.
var (
	ErrUnknownClient        = errors.New("unknown client")
	ErrInvalidClientSecret  = errors.New("invalid client secret")
	ErrInvalidScope         = errors.New("scope not allowed for client")
	ErrUnsupportedGrant     = errors.New("grant type not allowed for client")
	ErrInvalidRedirectURI   = errors.New("redirect uri not registered for client")
	ErrInvalidAuthorization = errors.New("authorization code invalid or expired")
)

// Publication errors.
var (
	// ErrPublishExhausted is returned after the bounded retry policy has
	// spent every attempt. The store mutation has already been applied;
	// downstream is stale until reconciliation.
	ErrPublishExhausted = errors.New("event publication retries exhausted")

	// ErrUnknownUserDownstream and ErrInsufficientFunds are the two failure
	// classes a consumer can surface that must never be retried.
	ErrUnknownUserDownstream = errors.New("user unknown to downstream consumer")
	ErrInsufficientFunds     = errors.New("insufficient funds reported by downstream consumer")
)

// PublishError tags a transport failure with an explicit retry decision so
// the retry policy stays data-driven instead of inspecting error types.
type PublishError struct {
	Err       error
	Permanent bool
}

func (e *PublishError) Error() string { return e.Err.Error() }

func (e *PublishError) Unwrap() error { return e.Err }

// Retriable returns a PublishError the retry policy may resubmit.
func Retriable(err error) *PublishError {
	return &PublishError{Err: err, Permanent: false}
}

// Permanent returns a PublishError that must be reported immediately.
func Permanent(err error) *PublishError {
	return &PublishError{Err: err, Permanent: true}
}
