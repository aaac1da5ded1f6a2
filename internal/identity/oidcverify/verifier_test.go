package oidcverify

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const audience = "gatehouse"

// testIssuer serves a minimal OIDC discovery document and JWKS backed by a
// generated RSA key, enough for the verifier to do real signature checks.
type testIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                server.URL,
			"jwks_uri":                              server.URL + "/keys",
			"authorization_endpoint":                server.URL + "/auth",
			"token_endpoint":                        server.URL + "/token",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})

	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	})

	return &testIssuer{server: server, key: key}
}

func (ti *testIssuer) mint(t *testing.T, sub string, expiresIn time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss":   ti.server.URL,
		"aud":   audience,
		"sub":   sub,
		"sid":   "sess_314",
		"email": "ada@example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"

	signed, err := token.SignedString(ti.key)
	require.NoError(t, err)
	return signed
}

func TestResolve_ValidToken(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := New(context.Background(), issuer.server.URL, audience)
	require.NoError(t, err)

	ident, err := v.Resolve(context.Background(), issuer.mint(t, "user_42", time.Hour))
	require.NoError(t, err)
	assert.True(t, ident.Present())
	assert.Equal(t, "user_42", ident.Subject)
	assert.Equal(t, "sess_314", ident.SessionID)
	assert.Equal(t, "ada@example.com", ident.Email)
}

func TestResolve_EmptyToken(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := New(context.Background(), issuer.server.URL, audience)
	require.NoError(t, err)

	ident, err := v.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ident.Present())
}

func TestResolve_ExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := New(context.Background(), issuer.server.URL, audience)
	require.NoError(t, err)

	ident, err := v.Resolve(context.Background(), issuer.mint(t, "user_42", -time.Hour))
	require.NoError(t, err, "expired tokens must resolve to no identity, not an error")
	assert.False(t, ident.Present())
}

func TestResolve_MalformedToken(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := New(context.Background(), issuer.server.URL, audience)
	require.NoError(t, err)

	ident, err := v.Resolve(context.Background(), "garbage.token.value")
	require.NoError(t, err)
	assert.False(t, ident.Present())
}

func TestResolve_ForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	forger := newTestIssuer(t)

	v, err := New(context.Background(), issuer.server.URL, audience)
	require.NoError(t, err)

	// Token minted by a different issuer's key but claiming our issuer.
	claims := jwt.MapClaims{
		"iss": issuer.server.URL,
		"aud": audience,
		"sub": "user_42",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	forged.Header["kid"] = "test-key"
	signed, err := forged.SignedString(forger.key)
	require.NoError(t, err)

	ident, err := v.Resolve(context.Background(), signed)
	require.NoError(t, err)
	assert.False(t, ident.Present())
}

func TestResolve_KeyFetchFailurePropagates(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := New(context.Background(), issuer.server.URL, audience)
	require.NoError(t, err)

	token := issuer.mint(t, "user_42", time.Hour)

	// Keys are fetched lazily on first verification; killing the issuer
	// now makes that fetch fail, which is an infrastructure error rather
	// than a statement about the token.
	issuer.server.Close()

	_, err = v.Resolve(context.Background(), token)
	require.Error(t, err)
}
