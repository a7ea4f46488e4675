// Package auth resolves the bearer token injected into upload init/chunk
// requests. This protocol has no login/logout surface of its own, only a
// pre-obtained token supplied by the caller's environment, a file, or
// literal config — so the collaborator is a plain oauth2.TokenSource
// wrapper, not a full device-auth flow.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"

	"github.com/haukigw/resumeup/internal/config"
)

// TokenSource resolves a caller's bearer token per the AuthConfig selection.
type TokenSource = oauth2.TokenSource

// NewTokenSource builds a TokenSource from cfg.Auth. "env" and "static"
// sources produce a token that never expires (oauth2.StaticTokenSource);
// "file" reads a JSON-encoded oauth2.Token from disk once at startup — this
// repo does not refresh it, since the protocol's collaborator interface
// (§6) only requires a current bearer value per request, not a refresh flow.
func NewTokenSource(cfg *config.AuthConfig) (TokenSource, error) {
	switch cfg.TokenSource {
	case "", "env":
		envVar := cfg.TokenEnvVar
		if envVar == "" {
			envVar = "RESUMEUP_TOKEN"
		}

		val := strings.TrimSpace(os.Getenv(envVar))
		if val == "" {
			return nil, fmt.Errorf("auth: environment variable %s is not set", envVar)
		}

		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: val}), nil

	case "static":
		if cfg.StaticToken == "" {
			return nil, fmt.Errorf("auth: token_source is \"static\" but static_token is empty")
		}

		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.StaticToken}), nil

	case "file":
		tok, err := loadTokenFile(cfg.TokenFile)
		if err != nil {
			return nil, err
		}

		return oauth2.StaticTokenSource(tok), nil

	default:
		return nil, fmt.Errorf("auth: unknown token_source %q", cfg.TokenSource)
	}
}

func loadTokenFile(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, fmt.Errorf("auth: token_source is \"file\" but token_file is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: reading token file %s: %w", path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("auth: decoding token file %s: %w", path, err)
	}

	if tok.AccessToken == "" {
		return nil, fmt.Errorf("auth: token file %s has no access_token", path)
	}

	return &tok, nil
}

