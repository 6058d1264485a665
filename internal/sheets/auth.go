package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	oauthjwt "golang.org/x/oauth2/jwt"
)

// SheetsScope is the OAuth scope needed to read and write spreadsheet values.
const SheetsScope = "https://www.googleapis.com/auth/spreadsheets"

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// TokenSource supplies the bearer token for each remote call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a pre-issued access token.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// ServiceAccount holds the fields of a Google service-account key file.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount decodes a key file. Private keys pasted into
// environment variables often carry literal \n sequences; they are restored.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("decoding service account: %w", err)
	}
	var missing []string
	for name, v := range map[string]string{"client_email": sa.ClientEmail, "private_key": sa.PrivateKey} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("service account is missing %s", strings.Join(missing, ", "))
	}
	sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	return &sa, nil
}

// ServiceAccountTokens exchanges a signed JWT assertion for access tokens
// through the OAuth2 JWT-bearer flow and caches each token until shortly
// before it expires.
type ServiceAccountTokens struct {
	conf *oauthjwt.Config
	now  func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

func NewServiceAccountTokens(sa *ServiceAccount, scope string) *ServiceAccountTokens {
	if scope == "" {
		scope = SheetsScope
	}
	return &ServiceAccountTokens{
		conf: &oauthjwt.Config{
			Email:        sa.ClientEmail,
			PrivateKey:   []byte(sa.PrivateKey),
			PrivateKeyID: sa.PrivateKeyID,
			Scopes:       []string{scope},
			TokenURL:     sa.TokenURI,
		},
		now: time.Now,
	}
}

func (s *ServiceAccountTokens) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != nil && now.Add(time.Minute).Before(s.token.Expiry) {
		return s.token.AccessToken, nil
	}

	tok, err := s.conf.TokenSource(ctx).Token()
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no access token")
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = now.Add(defaultTokenLifetime)
	}
	s.token = tok
	return tok.AccessToken, nil
}
