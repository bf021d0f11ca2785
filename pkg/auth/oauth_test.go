package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func writeSecrets(t *testing.T, dir, redirect string) {
	t.Helper()
	secrets := fmt.Sprintf(`{"installed":{
		"client_id":"id.apps.googleusercontent.com",
		"client_secret":"secret",
		"redirect_uris":[%q],
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token"
	}}`, redirect)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(secrets), 0600))
}

func TestConfigRedirect(t *testing.T) {
	tests := map[string]string{
		"http://localhost":           "http://localhost:6789",
		"http://127.0.0.1:8080/cb":   "http://127.0.0.1:6789/cb",
		"urn:ietf:wg:oauth:2.0:oob":  "http://localhost:6789/oauth2callback",
		"https://example.com/oauth2": "https://example.com/oauth2",
	}
	for redirect, want := range tests {
		t.Run(redirect, func(t *testing.T) {
			dir := t.TempDir()
			writeSecrets(t, dir, redirect)
			cfg, err := NewFlow(dir, nil).Config([]string{"scope"})
			require.NoError(t, err)
			assert.Equal(t, want, cfg.RedirectURL)
		})
	}
}

func TestConfigMissingSecrets(t *testing.T) {
	_, err := NewFlow(t.TempDir(), nil).Config(nil)
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TokenFile)
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, saveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.AccessToken)
	assert.Equal(t, "r", loaded.RefreshToken)
}

func TestClientUsesCachedToken(t *testing.T) {
	dir := t.TempDir()
	writeSecrets(t, dir, "http://localhost")
	flow := NewFlow(dir, nil)
	flow.Prompt = func(string) { t.Fatal("authorization should not be requested") }
	require.NoError(t, saveToken(flow.TokenPath(), &oauth2.Token{
		AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour),
	}))

	client, err := flow.Client(context.Background(), []string{"scope"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestReset(t *testing.T) {
	flow := NewFlow(t.TempDir(), nil)
	assert.NoError(t, flow.Reset())

	require.NoError(t, saveToken(flow.TokenPath(), &oauth2.Token{AccessToken: "a"}))
	require.NoError(t, flow.Reset())
	_, err := os.Stat(flow.TokenPath())
	assert.True(t, os.IsNotExist(err))
}
