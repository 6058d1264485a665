package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand_forecast/internal/config"
	"demand_forecast/internal/ws"
)

const testSecret = "0123456789abcdef-test"

func TestAuthenticator_IssueValidate(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	tok, err := auth.Issue("ops", time.Hour)
	require.NoError(t, err)
	claims, err := auth.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	_, err = NewAuthenticator("another-secret-value").Validate(tok)
	assert.Error(t, err, "signed with a different secret")

	expired, err := auth.Issue("ops", -time.Minute)
	require.NoError(t, err)
	_, err = auth.Validate(expired)
	assert.Error(t, err)
}

func TestWriteRoutesRequireToken(t *testing.T) {
	_, sess := newTestServer(t, 10)
	srv := New(sess, ws.NewHub(), config.Server{JWTSecret: testSecret})
	auth := NewAuthenticator(testSecret)
	valid, err := auth.Issue("ops", time.Hour)
	require.NoError(t, err)
	expired, err := auth.Issue("ops", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"read without token", http.MethodGet, "/records", "", http.StatusOK},
		{"push without token", http.MethodPost, "/sync/push", "", http.StatusUnauthorized},
		{"push with garbage", http.MethodPost, "/sync/push", "Bearer nope", http.StatusUnauthorized},
		{"push with expired token", http.MethodPost, "/sync/push", "Bearer " + expired, http.StatusUnauthorized},
		{"push with token", http.MethodPost, "/sync/push", "Bearer " + valid, http.StatusOK},
		{"pull without scheme", http.MethodPost, "/sync/pull", valid, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestWriteRoutesOpenWithoutSecret(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	w := do(t, srv, http.MethodPost, "/sync/push", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
