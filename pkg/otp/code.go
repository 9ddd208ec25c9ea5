package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Action is the flow a one-time code authorizes
type Action string

const (
	ActionLogin    Action = "LOGIN"
	ActionRegister Action = "REGISTER"
	// ActionRegisterOrLogin is accepted on input only and resolved before storage
	ActionRegisterOrLogin Action = "REGISTER_OR_LOGIN"
	ActionResetPassword   Action = "RESET_PASSWORD"
)

// ParseAction parses an action name case-insensitively
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionLogin, ActionRegister, ActionRegisterOrLogin, ActionResetPassword:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Stored reports whether codes for this action may be persisted
func (a Action) Stored() bool {
	return a == ActionLogin || a == ActionRegister || a == ActionResetPassword
}

const (
	CodeLength = 6
	CodeTTL    = 5 * time.Minute
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	// ErrCodeNotFound is returned by stores when no code exists for a lookup
	ErrCodeNotFound = errors.New("one-time code not found")
)

// Code is a stored one-time code
type Code struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Value     string    `json:"-"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code is past its expiry at now
func (c *Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Generate returns a random code of CodeLength characters from [A-Z0-9]
func Generate() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
