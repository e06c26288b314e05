package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig parses an OAuth client secret for the Sheets scope.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// OAuthClientFromEnv reads the client secret from GOOGLE_OAUTH_CLIENT_JSON
// or GOOGLE_OAUTH_CLIENT_FILE. It returns nil, nil when neither is set.
func OAuthClientFromEnv() ([]byte, error) {
	return fromEnv("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

func fromEnv(inlineKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(inlineKey)); v != "" {
		return []byte(v), nil
	}
	if path := strings.TrimSpace(os.Getenv(fileKey)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileKey, err)
		}
		return b, nil
	}
	return nil, nil
}

// credentialsFromEnv picks the authentication for the Sheets API. A user
// token from sheets-auth wins over service account credentials.
func credentialsFromEnv(ctx context.Context) (goption.ClientOption, error) {
	clientJSON, err := OAuthClientFromEnv()
	if err != nil {
		return nil, err
	}
	tokenJSON, err := fromEnv("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON != nil && tokenJSON != nil {
		cfg, err := OAuthConfig(clientJSON)
		if err != nil {
			return nil, err
		}
		var tok oauth2.Token
		if err := json.Unmarshal(tokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("parse oauth token: %w", err)
		}
		slog.InfoContext(ctx, "Using OAuth user token")
		return goption.WithTokenSource(cfg.TokenSource(ctx, &tok)), nil
	}

	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing Google credentials (set GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*, or GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return goption.WithCredentialsJSON(credentialsJSON), nil
}
