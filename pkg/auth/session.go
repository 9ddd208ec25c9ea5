package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionTTL is the fixed validity of a session token
	SessionTTL = 30 * 24 * time.Hour
	// DefaultIssuer is the iss claim when none is configured
	DefaultIssuer = "jobportal"
)

var (
	// ErrInvalidSession is returned for malformed, forged or expired tokens
	ErrInvalidSession = errors.New("invalid session token")
	// ErrEmptySecret is returned when the signing secret is missing
	ErrEmptySecret = errors.New("session signing secret is empty")
)

// Claims is the payload of a session token
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the numeric user id carried in the subject
func (c *Claims) UserID() (int64, error) {
	if c.Subject == "" {
		return 0, fmt.Errorf("session has no subject")
	}
	return strconv.ParseInt(c.Subject, 10, 64)
}

// SessionManager signs and verifies HS256 session tokens
type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a session manager
func NewSessionManager(secret []byte, issuer string) (*SessionManager, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &SessionManager{
		secret: secret,
		issuer: issuer,
		ttl:    SessionTTL,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source, for tests
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// Issue signs a token for the user and returns it with its expiry
func (m *SessionManager) Issue(user *User) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, fmt.Errorf("user is required")
	}

	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(m.ttl)

	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer and expiry and returns the claims
func (m *SessionManager) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}
