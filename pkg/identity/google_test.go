package identity

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testClientID = "client-123.apps.googleusercontent.com"

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	base := jwt.MapClaims{
		"iss":            GoogleIssuer,
		"aud":            testClientID,
		"sub":            "1098765",
		"email":          "new.person@gmail.com",
		"email_verified": true,
		"given_name":     "New",
		"family_name":    "Person",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, base).SignedString(key)
	require.NoError(t, err)
	return raw
}

func newVerifier(key *rsa.PrivateKey, endpoint oauth2.Endpoint) *GoogleVerifier {
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return NewStaticGoogleVerifier(GoogleConfig{ClientID: testClientID, ClientSecret: "secret"}, keys, endpoint)
}

func TestGoogleConfig_Validate(t *testing.T) {
	assert.Error(t, GoogleConfig{}.Validate())
	assert.NoError(t, GoogleConfig{ClientID: testClientID}.Validate())
}

func TestGoogleVerifier_Verify(t *testing.T) {
	key := newKey(t)
	v := newVerifier(key, oauth2.Endpoint{})
	ctx := context.Background()

	id, err := v.Verify(ctx, signToken(t, key, nil))
	require.NoError(t, err)
	assert.Equal(t, "1098765", id.Subject)
	assert.Equal(t, "new.person@gmail.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "New", id.FirstName)
	assert.Equal(t, "Person", id.LastName)

	id, err = v.Verify(ctx, signToken(t, key, jwt.MapClaims{"iss": "accounts.google.com"}))
	require.NoError(t, err)
	assert.Equal(t, "1098765", id.Subject)
}

func TestGoogleVerifier_Rejects(t *testing.T) {
	key := newKey(t)
	v := newVerifier(key, oauth2.Endpoint{})
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong audience", signToken(t, key, jwt.MapClaims{"aud": "someone-else"})},
		{"expired", signToken(t, key, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})},
		{"wrong issuer", signToken(t, key, jwt.MapClaims{"iss": "https://evil.example.com"})},
		{"wrong key", signToken(t, newKey(t), nil)},
		{"no email", signToken(t, key, jwt.MapClaims{"email": ""})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(ctx, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGoogleVerifier_Exchange(t *testing.T) {
	key := newKey(t)
	idToken := signToken(t, key, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "auth-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	defer srv.Close()

	v := newVerifier(key, oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams})
	ctx := context.Background()

	id, err := v.Exchange(ctx, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "new.person@gmail.com", id.Email)

	_, err = v.Exchange(ctx, "wrong-code")
	assert.Error(t, err)

	_, err = v.Exchange(ctx, "")
	assert.Error(t, err)
}

var (
	_ Verifier      = (*GoogleVerifier)(nil)
	_ CodeExchanger = (*GoogleVerifier)(nil)
)
