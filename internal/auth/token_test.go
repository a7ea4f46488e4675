package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukigw/resumeup/internal/config"
)

func TestNewTokenSource_Env(t *testing.T) {
	t.Setenv("RESUMEUP_TOKEN", "token-from-env")

	ts, err := NewTokenSource(&config.AuthConfig{TokenSource: "env"})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "token-from-env", tok.AccessToken)
}

func TestNewTokenSource_EnvCustomVar(t *testing.T) {
	t.Setenv("MY_TOKEN", "custom-token")

	ts, err := NewTokenSource(&config.AuthConfig{TokenSource: "env", TokenEnvVar: "MY_TOKEN"})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "custom-token", tok.AccessToken)
}

func TestNewTokenSource_EnvMissing(t *testing.T) {
	t.Setenv("RESUMEUP_TOKEN", "")

	_, err := NewTokenSource(&config.AuthConfig{TokenSource: "env"})
	require.Error(t, err)
}

func TestNewTokenSource_Static(t *testing.T) {
	ts, err := NewTokenSource(&config.AuthConfig{TokenSource: "static", StaticToken: "abc"})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
}

func TestNewTokenSource_StaticMissing(t *testing.T) {
	_, err := NewTokenSource(&config.AuthConfig{TokenSource: "static"})
	require.Error(t, err)
}

func TestNewTokenSource_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"file-token"}`), 0o600))

	ts, err := NewTokenSource(&config.AuthConfig{TokenSource: "file", TokenFile: path})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "file-token", tok.AccessToken)
}

func TestNewTokenSource_FileMissingPath(t *testing.T) {
	_, err := NewTokenSource(&config.AuthConfig{TokenSource: "file"})
	require.Error(t, err)
}

func TestNewTokenSource_FileNotFound(t *testing.T) {
	_, err := NewTokenSource(&config.AuthConfig{TokenSource: "file", TokenFile: "/nonexistent/token.json"})
	require.Error(t, err)
}

func TestNewTokenSource_FileEmptyAccessToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := NewTokenSource(&config.AuthConfig{TokenSource: "file", TokenFile: path})
	require.Error(t, err)
}

func TestNewTokenSource_Unknown(t *testing.T) {
	_, err := NewTokenSource(&config.AuthConfig{TokenSource: "bogus"})
	require.Error(t, err)
}
