package sheets

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertionClaims mirrors the claim set of a JWT-bearer assertion.
type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return key, string(block)
}

func TestParseServiceAccount(t *testing.T) {
	raw := `{"type":"service_account","client_email":"bot@example.iam.gserviceaccount.com","private_key":"-----BEGIN-----\\nabc\\n-----END-----\\n"}`
	sa, err := ParseServiceAccount([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "bot@example.iam.gserviceaccount.com", sa.ClientEmail)
	assert.Equal(t, "-----BEGIN-----\nabc\n-----END-----\n", sa.PrivateKey)
	assert.Equal(t, defaultTokenURI, sa.TokenURI)

	_, err = ParseServiceAccount([]byte(`{"client_email":"x"}`))
	assert.ErrorContains(t, err, "private_key")

	_, err = ParseServiceAccount([]byte(`not json`))
	assert.Error(t, err)
}

func TestServiceAccountTokens_ExchangeAndCache(t *testing.T) {
	key, pemKey := testKey(t)
	var calls atomic.Int32

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))

		var claims assertionClaims
		_, err := jwt.ParseWithClaims(r.Form.Get("assertion"), &claims, func(tok *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		assert.NoError(t, err)
		assert.Equal(t, "bot@example.com", claims.Issuer)
		assert.Equal(t, SheetsScope, claims.Scope)
		assert.Equal(t, jwt.ClaimStrings{srv.URL}, claims.Audience)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "ya29.token", "token_type": "Bearer", "expires_in": 3600})
	}))
	defer srv.Close()

	tokens := NewServiceAccountTokens(&ServiceAccount{ClientEmail: "bot@example.com", PrivateKey: pemKey, TokenURI: srv.URL}, "")

	tok, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", tok)

	_, err = tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "cached until expiry")

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "refreshed after expiry")
}

func TestServiceAccountTokens_Rejected(t *testing.T) {
	_, pemKey := testKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	tokens := NewServiceAccountTokens(&ServiceAccount{ClientEmail: "bot@example.com", PrivateKey: pemKey, TokenURI: srv.URL}, "")
	_, err := tokens.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")

	bad := NewServiceAccountTokens(&ServiceAccount{ClientEmail: "bot@example.com", PrivateKey: "garbage", TokenURI: srv.URL}, "")
	_, err = bad.Token(context.Background())
	assert.ErrorContains(t, err, "private key")
}

func TestServiceAccountTokens_DefaultLifetime(t *testing.T) {
	_, pemKey := testKey(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "ya29.no-expiry", "token_type": "Bearer"})
	}))
	defer srv.Close()

	start := time.Now()
	tokens := NewServiceAccountTokens(&ServiceAccount{ClientEmail: "bot@example.com", PrivateKey: pemKey, TokenURI: srv.URL}, "")
	tokens.now = func() time.Time { return start }

	for range 3 {
		tok, err := tokens.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ya29.no-expiry", tok)
	}
	assert.Equal(t, int32(1), calls.Load(), "token without expires_in is reused")

	tokens.now = func() time.Time { return start.Add(30 * time.Minute) }
	_, err := tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	tokens.now = func() time.Time { return start.Add(defaultTokenLifetime) }
	_, err = tokens.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "refreshed once the default lifetime runs out")
}

func TestClient_TokenFailureIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("sheet endpoint must not be called without a token")
	}))
	defer srv.Close()

	_, pemKey := testKey(t)
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	c := NewClient("id", "Sheet1", NewServiceAccountTokens(&ServiceAccount{ClientEmail: "a@b", PrivateKey: pemKey, TokenURI: tokenSrv.URL}, ""))
	c.BaseURL = srv.URL
	_, err := c.FetchAll(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "obtaining access token"))
}
