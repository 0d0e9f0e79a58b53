// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jun/repocms/internal/secret"
)

// Config holds all environment-based configuration.
type Config struct {
	// OAuth app credentials.
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	OAuthRedirectURI  string   `env:"OAUTH_REDIRECT_URI"`
	OAuthScopes       []string `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"read:user"`
	// Endpoint overrides for GitHub Enterprise and local fakes.
	OAuthAuthURL  string `env:"OAUTH_AUTH_URL"`
	OAuthTokenURL string `env:"OAUTH_TOKEN_URL"`
	GitHubAPIURL  string `env:"GITHUB_API_URL" envDefault:"https://api.github.com/"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"168h"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"true"`

	RepoOwner       string `env:"REPO_OWNER"`
	RepoName        string `env:"REPO_NAME"`
	RepoBranch      string `env:"REPO_BRANCH" envDefault:"main"`
	RepoAccessToken string `env:"REPO_ACCESS_TOKEN"`

	ContentRoot    string `env:"CONTENT_ROOT" envDefault:"content"`
	ContentExt     string `env:"CONTENT_EXT" envDefault:".md"`
	UploadRoot     string `env:"UPLOAD_ROOT" envDefault:"images"`
	ThemePath      string `env:"THEME_PATH" envDefault:"content/theme.txt"`
	ThemeTable     string `env:"THEME_TABLE"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	StaticDir      string `env:"STATIC_DIR" envDefault:"public"`

	AllowedOrigin      string `env:"ALLOWED_ORIGIN"`
	OriginVerifySecret string `env:"ORIGIN_VERIFY_SECRET"`

	// SecretsBackend selects where *_PARAM names are resolved: "ssm" or "env".
	SecretsBackend          string `env:"SECRETS_BACKEND" envDefault:"env"`
	SessionSecretParam      string `env:"SESSION_SECRET_PARAM" envDefault:"/repocms/session-secret"`
	OAuthClientSecretParam  string `env:"OAUTH_CLIENT_SECRET_PARAM" envDefault:"/repocms/oauth-client-secret"`
	RepoAccessTokenParam    string `env:"REPO_ACCESS_TOKEN_PARAM" envDefault:"/repocms/repo-access-token"`
	OriginVerifySecretParam string `env:"ORIGIN_VERIFY_SECRET_PARAM"`

	DevMode     bool   `env:"DEV_MODE" envDefault:"false"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.SecretsBackend = strings.ToLower(strings.TrimSpace(c.SecretsBackend))
	c.ContentRoot = strings.Trim(c.ContentRoot, "/")
	c.UploadRoot = strings.Trim(c.UploadRoot, "/")
	c.ThemePath = strings.TrimPrefix(c.ThemePath, "/")
	if c.ContentExt != "" && !strings.HasPrefix(c.ContentExt, ".") {
		c.ContentExt = "." + c.ContentExt
	}
	if c.GitHubAPIURL != "" && !strings.HasSuffix(c.GitHubAPIURL, "/") {
		c.GitHubAPIURL += "/"
	}
}

func (c *Config) validate() error {
	switch c.SecretsBackend {
	case "env", "ssm":
	default:
		return fmt.Errorf("SECRETS_BACKEND must be env or ssm, got %q", c.SecretsBackend)
	}
	if c.SessionMaxAge < 0 {
		return errors.New("SESSION_MAX_AGE must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.ContentRoot == "" {
		return errors.New("CONTENT_ROOT is required")
	}
	for name, raw := range map[string]string{
		"OAUTH_REDIRECT_URI": c.OAuthRedirectURI,
		"OAUTH_AUTH_URL":     c.OAuthAuthURL,
		"OAUTH_TOKEN_URL":    c.OAuthTokenURL,
		"GITHUB_API_URL":     c.GitHubAPIURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}

	if c.DevMode {
		return nil
	}
	if c.OAuthClientID == "" {
		return errors.New("OAUTH_CLIENT_ID is required")
	}
	if c.RepoOwner == "" || c.RepoName == "" {
		return errors.New("REPO_OWNER and REPO_NAME are required")
	}
	return nil
}

// ResolveSecrets fills empty secrets from their *_PARAM names and fails when
// a secret the service cannot run without is still missing.
func (c *Config) ResolveSecrets(ctx context.Context, r secret.Resolver) error {
	targets := []struct {
		value *string
		param string
	}{
		{&c.SessionSecret, c.SessionSecretParam},
		{&c.OAuthClientSecret, c.OAuthClientSecretParam},
		{&c.RepoAccessToken, c.RepoAccessTokenParam},
		{&c.OriginVerifySecret, c.OriginVerifySecretParam},
	}
	for _, t := range targets {
		if *t.value != "" || t.param == "" {
			continue
		}
		v, err := r.GetSecret(ctx, t.param)
		if err != nil {
			// Reported below if the value is mandatory.
			continue
		}
		*t.value = v
	}

	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required (set it or %s)", c.SessionSecretParam)
	}
	if c.RepoAccessToken == "" && !c.DevMode {
		return fmt.Errorf("REPO_ACCESS_TOKEN is required (set it or %s)", c.RepoAccessTokenParam)
	}
	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
