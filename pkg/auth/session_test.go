package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *User {
	return &User{ID: 42, Email: "dev@example.com", Role: RoleEmployee, IsActive: true}
}

func TestNewSessionManager_EmptySecret(t *testing.T) {
	_, err := NewSessionManager(nil, "")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestSessionManager_IssueAndParse(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewSessionManager([]byte("secret"), "")
	require.NoError(t, err)
	m.WithClock(func() time.Time { return now })

	token, exp, err := m.Issue(testUser())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, now.Add(SessionTTL), exp)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, RoleEmployee, claims.Role)
	assert.Equal(t, DefaultIssuer, claims.Issuer)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestSessionManager_Expired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m, _ := NewSessionManager([]byte("secret"), "jobportal")
	m.WithClock(func() time.Time { return now })

	token, _, err := m.Issue(testUser())
	require.NoError(t, err)

	m.WithClock(func() time.Time { return now.Add(SessionTTL + time.Minute) })
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionManager_WrongSecret(t *testing.T) {
	a, _ := NewSessionManager([]byte("secret-a"), "jobportal")
	b, _ := NewSessionManager([]byte("secret-b"), "jobportal")

	token, _, err := a.Issue(testUser())
	require.NoError(t, err)

	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionManager_WrongIssuer(t *testing.T) {
	a, _ := NewSessionManager([]byte("secret"), "other")
	b, _ := NewSessionManager([]byte("secret"), "jobportal")

	token, _, err := a.Issue(testUser())
	require.NoError(t, err)

	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionManager_RejectsOtherAlgorithms(t *testing.T) {
	m, _ := NewSessionManager([]byte("secret"), "jobportal")

	claims := Claims{
		Email: "dev@example.com",
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "jobportal",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionManager_Malformed(t *testing.T) {
	m, _ := NewSessionManager([]byte("secret"), "jobportal")

	for _, token := range []string{"", "abc", "a.b.c"} {
		_, err := m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession, token)
	}
}

func TestClaims_UserID_NoSubject(t *testing.T) {
	c := &Claims{}
	_, err := c.UserID()
	assert.Error(t, err)
}
