package auth

import "errors"

// Identity is the validated identity attached to a connection. It is the
// only thing the chat core ever learns about a user; accounts, passwords
// and token issuance live in a separate service.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

var (
	// ErrInvalidToken is returned when a presented token fails validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier resolves a bearer token into an Identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}
