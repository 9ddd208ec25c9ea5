package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/jobportal/pkg/apperr"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	MaxPasswordLength = 72
	// PasswordHistoryLimit bounds how many previous hashes are remembered
	PasswordHistoryLimit = 5
)

// ValidatePasswordPolicy checks length and confirmation equality
func ValidatePasswordPolicy(password, confirm string) error {
	if password == "" {
		return apperr.MissingParameter("password")
	}
	if confirm == "" {
		return apperr.MissingParameter("confirm_password")
	}
	if len(password) < MinPasswordLength {
		return apperr.Newf(apperr.KindBadRequest, "password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return apperr.Newf(apperr.KindBadRequest, "password must be at most %d bytes", MaxPasswordLength)
	}
	if password != confirm {
		return apperr.BadRequest("password and confirmation do not match")
	}
	return nil
}

// HashPassword returns a bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Reuses reports whether password matches the current or any remembered hash
func (c *Credential) Reuses(password string) bool {
	if CheckPassword(c.PasswordHash, password) {
		return true
	}
	for _, previous := range c.PreviousHashes {
		if CheckPassword(previous, password) {
			return true
		}
	}
	return false
}

// Rotate makes newHash current and pushes the old hash onto the history
func (c *Credential) Rotate(newHash string) {
	if c.PasswordHash != "" {
		history := append([]string{c.PasswordHash}, c.PreviousHashes...)
		if len(history) > PasswordHistoryLimit {
			history = history[:PasswordHistoryLimit]
		}
		c.PreviousHashes = history
	}
	c.PasswordHash = newHash
}
