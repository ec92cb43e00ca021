package googlesheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested for every credential: read/write on spreadsheets and
// file metadata for name lookup.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope}

// ServiceAccountKey represents the structure of a service account JSON key file
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// NewWithJSONKeyFile creates an adapter from a service account key file.
// An empty path falls back to GOOGLE_APPLICATION_CREDENTIALS.
func NewWithJSONKeyFile(ctx context.Context, config Config, jsonPath string) (*Adapter, error) {
	if jsonPath == "" {
		jsonPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		if jsonPath == "" {
			return nil, fmt.Errorf("no JSON key file path provided and GOOGLE_APPLICATION_CREDENTIALS not set")
		}
	}

	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON key file: %w", err)
	}
	return NewWithJSONKeyData(ctx, config, jsonData)
}

// NewWithJSONKeyData creates an adapter from service account key JSON
func NewWithJSONKeyData(ctx context.Context, config Config, jsonData []byte) (*Adapter, error) {
	if _, err := ParseServiceAccountJSON(jsonData); err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, jsonData, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return New(ctx, config, option.WithCredentials(creds))
}

// NewWithEnvCredentials creates an adapter from key JSON stored in the
// environment variable name. Real line breaks inside the value, as left
// by shells and CI secret stores, are tolerated.
func NewWithEnvCredentials(ctx context.Context, config Config, name string) (*Adapter, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, fmt.Errorf("environment variable %s is not set", name)
	}
	return NewWithJSONKeyData(ctx, config, DecodeEnvCredentials(raw))
}

// NewWithServiceAccountKey creates an adapter from an email and private key
func NewWithServiceAccountKey(ctx context.Context, config Config, email string, privateKey string) (*Adapter, error) {
	jwtConfig := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(privateKey),
		Scopes:     Scopes,
		TokenURL:   google.JWTTokenURL,
	}
	return New(ctx, config, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
}

// NewWithDefaultCredentials creates an adapter from Application Default
// Credentials: GOOGLE_APPLICATION_CREDENTIALS, gcloud, then the metadata
// server.
func NewWithDefaultCredentials(ctx context.Context, config Config) (*Adapter, error) {
	tokenSource, err := google.DefaultTokenSource(ctx, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to get default token source: %w", err)
	}
	return New(ctx, config, option.WithTokenSource(tokenSource))
}

// DecodeEnvCredentials returns raw as key JSON. When raw does not parse
// because literal newlines sit inside the private key string, they are
// escaped first.
func DecodeEnvCredentials(raw string) []byte {
	if json.Valid([]byte(raw)) {
		return []byte(raw)
	}
	escaped := strings.ReplaceAll(strings.ReplaceAll(raw, "\r\n", "\n"), "\n", `\n`)
	return []byte(escaped)
}

// ParseServiceAccountJSON parses and checks service account key JSON
func ParseServiceAccountJSON(jsonData []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(jsonData, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
	}

	if key.Type != "service_account" {
		return nil, fmt.Errorf("invalid key type: %s (expected: service_account)", key.Type)
	}

	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("missing required fields in service account key")
	}

	return &key, nil
}

// CreateTokenSource creates an oauth2.TokenSource from a key file path
// (string), key JSON ([]byte) or a parsed *ServiceAccountKey.
func CreateTokenSource(ctx context.Context, credentials interface{}) (oauth2.TokenSource, error) {
	switch cred := credentials.(type) {
	case string:
		jsonData, err := os.ReadFile(cred)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return tokenSourceFromJSON(ctx, jsonData)
	case []byte:
		return tokenSourceFromJSON(ctx, cred)
	case *ServiceAccountKey:
		jwtConfig := &jwt.Config{
			Email:      cred.ClientEmail,
			PrivateKey: []byte(cred.PrivateKey),
			Scopes:     Scopes,
			TokenURL:   google.JWTTokenURL,
		}
		return jwtConfig.TokenSource(ctx), nil
	default:
		return nil, fmt.Errorf("unsupported credential type: %T", credentials)
	}
}

func tokenSourceFromJSON(ctx context.Context, jsonData []byte) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, jsonData, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds.TokenSource, nil
}
