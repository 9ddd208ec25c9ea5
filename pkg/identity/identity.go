package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken is wrapped by every verification failure
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is the subset of an external identity the portal uses
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Picture       string
}

// Verifier checks an identity token issued by an external provider
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Identity, error)
}

// CodeExchanger redeems an OAuth2 authorization code for a verified identity
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*Identity, error)
}
