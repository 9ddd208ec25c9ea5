package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jobportal/pkg/apperr"
)

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		kind     apperr.Kind
	}{
		{"valid", "correct-horse", "correct-horse", ""},
		{"missing password", "", "x", apperr.KindParameterMissing},
		{"missing confirm", "correct-horse", "", apperr.KindParameterMissing},
		{"too short", "short", "short", apperr.KindBadRequest},
		{"too long", strings.Repeat("a", 73), strings.Repeat("a", 73), apperr.KindBadRequest},
		{"mismatch", "correct-horse", "correct-horsE", apperr.KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordPolicy(tt.password, tt.confirm)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", hash)

	assert.True(t, CheckPassword(hash, "correct-horse"))
	assert.False(t, CheckPassword(hash, "wrong-horse"))
	assert.False(t, CheckPassword("", "correct-horse"))
}

func TestCredential_RotateKeepsBoundedHistory(t *testing.T) {
	cred := &Credential{}
	cred.Rotate("h0")
	assert.Empty(t, cred.PreviousHashes)

	for _, h := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		cred.Rotate(h)
	}

	assert.Equal(t, "h6", cred.PasswordHash)
	assert.Equal(t, []string{"h5", "h4", "h3", "h2", "h1"}, cred.PreviousHashes)
}

func TestCredential_Reuses(t *testing.T) {
	first, err := HashPassword("first-password")
	require.NoError(t, err)
	second, err := HashPassword("second-password")
	require.NoError(t, err)

	cred := &Credential{PasswordHash: first}
	cred.Rotate(second)

	assert.True(t, cred.Reuses("second-password"))
	assert.True(t, cred.Reuses("first-password"))
	assert.False(t, cred.Reuses("third-password"))
}
