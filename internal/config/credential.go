package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"demand_forecast/internal/sheets"
)

// CredentialSource records where the sheet credential came from.
type CredentialSource string

const (
	SourceEnvironment CredentialSource = "environment"
	SourceFile        CredentialSource = "file"
	// SourceFallback is the credential file shipped next to the binary. It
	// works out of the box but is shared by every install.
	SourceFallback CredentialSource = "fallback"
	SourceNone     CredentialSource = "none"
)

// FallbackCredentialPath is looked up when neither the environment nor the
// config names a credential.
var FallbackCredentialPath = "credentials.json"

// Credential is the sheet credential with its provenance.
type Credential struct {
	Source CredentialSource
	Path   string
	Data   []byte
}

// Insecure reports whether the credential is the shared fallback.
func (c Credential) Insecure() bool {
	return c.Source == SourceFallback
}

// ResolveCredential picks the credential in order: GOOGLE_CREDENTIALS_JSON,
// sheet.credentials_file, then the fallback file. Using the fallback logs a
// warning; with sheet.require_credential it is an error instead.
func ResolveCredential(s Sheet) (Credential, error) {
	if v := os.Getenv("GOOGLE_CREDENTIALS_JSON"); v != "" {
		return Credential{Source: SourceEnvironment, Data: []byte(v)}, nil
	}

	if s.CredentialsFile != "" {
		data, err := os.ReadFile(s.CredentialsFile)
		if err != nil {
			return Credential{}, fmt.Errorf("reading credentials file: %w", err)
		}
		return Credential{Source: SourceFile, Path: s.CredentialsFile, Data: data}, nil
	}

	if data, err := os.ReadFile(FallbackCredentialPath); err == nil {
		if s.RequireCredential {
			return Credential{}, fmt.Errorf("only the fallback credential %s is available and sheet.require_credential is set", FallbackCredentialPath)
		}
		log.Printf("warning: using fallback credential %s; set GOOGLE_CREDENTIALS_JSON or sheet.credentials_file", FallbackCredentialPath)
		return Credential{Source: SourceFallback, Path: FallbackCredentialPath, Data: data}, nil
	}

	if s.RequireCredential {
		return Credential{}, fmt.Errorf("no sheet credential: set GOOGLE_CREDENTIALS_JSON or sheet.credentials_file")
	}
	return Credential{Source: SourceNone}, nil
}

// TokenSource turns the credential into bearer tokens. A JSON service
// account key is exchanged for access tokens; any other value is used as a
// pre-issued access token.
func (c Credential) TokenSource() (sheets.TokenSource, error) {
	data := bytes.TrimSpace(c.Data)
	if c.Source == SourceNone || len(data) == 0 {
		return nil, nil
	}
	if json.Valid(data) {
		sa, err := sheets.ParseServiceAccount(data)
		if err != nil {
			return nil, fmt.Errorf("%s credential: %w", c.Source, err)
		}
		return sheets.NewServiceAccountTokens(sa, sheets.SheetsScope), nil
	}
	return sheets.StaticToken(string(data)), nil
}
