package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "OAUTH_REDIRECT_URI", "OAUTH_SCOPES",
		"OAUTH_AUTH_URL", "OAUTH_TOKEN_URL", "GITHUB_API_URL",
		"SESSION_SECRET", "SESSION_MAX_AGE", "COOKIE_SECURE",
		"REPO_OWNER", "REPO_NAME", "REPO_BRANCH", "REPO_ACCESS_TOKEN",
		"CONTENT_ROOT", "CONTENT_EXT", "UPLOAD_ROOT", "THEME_PATH", "THEME_TABLE",
		"MAX_UPLOAD_BYTES", "STATIC_DIR", "ALLOWED_ORIGIN", "ORIGIN_VERIFY_SECRET",
		"SECRETS_BACKEND", "SESSION_SECRET_PARAM", "OAUTH_CLIENT_SECRET_PARAM",
		"REPO_ACCESS_TOKEN_PARAM", "ORIGIN_VERIFY_SECRET_PARAM",
		"DEV_MODE", "ENVIRONMENT", "LOG_LEVEL", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OAUTH_CLIENT_ID", "Iv1.abc")
	t.Setenv("REPO_OWNER", "acme")
	t.Setenv("REPO_NAME", "site")
}

type fakeResolver map[string]string

func (f fakeResolver) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"read:user"}, cfg.OAuthScopes)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionMaxAge)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "main", cfg.RepoBranch)
	assert.Equal(t, "content", cfg.ContentRoot)
	assert.Equal(t, ".md", cfg.ContentExt)
	assert.Equal(t, "images", cfg.UploadRoot)
	assert.Equal(t, "content/theme.txt", cfg.ThemePath)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "public", cfg.StaticDir)
	assert.Equal(t, "env", cfg.SecretsBackend)
	assert.Equal(t, "https://api.github.com/", cfg.GitHubAPIURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Normalizes(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	t.Setenv("CONTENT_ROOT", "/posts/")
	t.Setenv("CONTENT_EXT", "mdx")
	t.Setenv("GITHUB_API_URL", "https://ghe.example.com/api/v3")
	t.Setenv("SECRETS_BACKEND", " SSM ")
	t.Setenv("OAUTH_SCOPES", "read:user,user:email")
	t.Setenv("SESSION_MAX_AGE", "12h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "posts", cfg.ContentRoot)
	assert.Equal(t, ".mdx", cfg.ContentExt)
	assert.Equal(t, "https://ghe.example.com/api/v3/", cfg.GitHubAPIURL)
	assert.Equal(t, "ssm", cfg.SecretsBackend)
	assert.Equal(t, []string{"read:user", "user:email"}, cfg.OAuthScopes)
	assert.Equal(t, 12*time.Hour, cfg.SessionMaxAge)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing client id", map[string]string{"OAUTH_CLIENT_ID": ""}, "OAUTH_CLIENT_ID"},
		{"missing repo", map[string]string{"REPO_NAME": ""}, "REPO_NAME"},
		{"bad backend", map[string]string{"SECRETS_BACKEND": "vault"}, "SECRETS_BACKEND"},
		{"bad upload limit", map[string]string{"MAX_UPLOAD_BYTES": "0"}, "MAX_UPLOAD_BYTES"},
		{"relative url", map[string]string{"OAUTH_TOKEN_URL": "/token"}, "OAUTH_TOKEN_URL"},
		{"unparsable duration", map[string]string{"SESSION_MAX_AGE": "week"}, "week"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_DevModeRelaxesRequirements(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
}

func TestResolveSecrets(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	t.Setenv("OAUTH_CLIENT_SECRET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.ResolveSecrets(context.Background(), fakeResolver{
		"/repocms/session-secret":      "sess",
		"/repocms/oauth-client-secret": "from-ssm",
		"/repocms/repo-access-token":   "ghp_repo",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess", cfg.SessionSecret)
	assert.Equal(t, "from-env", cfg.OAuthClientSecret, "explicit values win over parameters")
	assert.Equal(t, "ghp_repo", cfg.RepoAccessToken)
}

func TestResolveSecrets_FailFast(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.ResolveSecrets(context.Background(), fakeResolver{})
	assert.ErrorContains(t, err, "SESSION_SECRET")

	err = cfg.ResolveSecrets(context.Background(), fakeResolver{"/repocms/session-secret": "sess"})
	assert.ErrorContains(t, err, "REPO_ACCESS_TOKEN")

	cfg.DevMode = true
	assert.NoError(t, cfg.ResolveSecrets(context.Background(), fakeResolver{}))
}
