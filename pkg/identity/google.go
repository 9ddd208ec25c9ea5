package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// GoogleIssuer is the discovery URL and canonical issuer of Google ID tokens
	GoogleIssuer = "https://accounts.google.com"
	// googleLegacyIssuer appears in tokens minted by older Google clients
	googleLegacyIssuer = "accounts.google.com"
)

// GoogleConfig configures Google sign-in
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	IssuerURL    string `yaml:"issuer_url"`
}

// Validate checks the configuration. ClientSecret is only needed for code exchange.
func (c GoogleConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	return nil
}

func (c GoogleConfig) issuer() string {
	if c.IssuerURL == "" {
		return GoogleIssuer
	}
	return c.IssuerURL
}

// GoogleVerifier verifies Google ID tokens and exchanges authorization codes
type GoogleVerifier struct {
	cfg      GoogleConfig
	verifier *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

// NewGoogleVerifier discovers the provider's keys and endpoints
func NewGoogleVerifier(ctx context.Context, cfg GoogleConfig) (*GoogleVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := oidc.NewProvider(ctx, cfg.issuer())
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &GoogleVerifier{
		cfg:      cfg,
		verifier: provider.Verifier(verifierConfig(cfg)),
		oauth2:   oauth2Config(cfg, provider.Endpoint()),
	}, nil
}

// NewStaticGoogleVerifier builds a verifier from a fixed key set and token
// endpoint without network discovery
func NewStaticGoogleVerifier(cfg GoogleConfig, keys oidc.KeySet, endpoint oauth2.Endpoint) *GoogleVerifier {
	return &GoogleVerifier{
		cfg:      cfg,
		verifier: oidc.NewVerifier(cfg.issuer(), keys, verifierConfig(cfg)),
		oauth2:   oauth2Config(cfg, endpoint),
	}
}

func verifierConfig(cfg GoogleConfig) *oidc.Config {
	// both issuer spellings are valid for Google, checked in Verify
	return &oidc.Config{ClientID: cfg.ClientID, SkipIssuerCheck: true}
}

func oauth2Config(cfg GoogleConfig, endpoint oauth2.Endpoint) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// Verify checks the signature, audience, expiry and issuer of rawIDToken
func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	if rawIDToken == "" {
		return nil, ErrInvalidToken
	}
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if idToken.Issuer != v.cfg.issuer() && !(v.cfg.issuer() == GoogleIssuer && idToken.Issuer == googleLegacyIssuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, idToken.Issuer)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}

	return &Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
		Picture:       claims.Picture,
	}, nil
}

// Exchange trades an authorization code for tokens and verifies the returned ID token
func (v *GoogleVerifier) Exchange(ctx context.Context, code string) (*Identity, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	token, err := v.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing id_token in response", ErrInvalidToken)
	}
	return v.Verify(ctx, rawIDToken)
}
