// Package app wires the CMS together and routes API Gateway requests.
package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/jun/repocms/internal/adapter"
	"github.com/jun/repocms/internal/adapter/githubrepo"
	"github.com/jun/repocms/internal/adapter/memory"
	"github.com/jun/repocms/internal/auth"
	"github.com/jun/repocms/internal/config"
	"github.com/jun/repocms/internal/content"
	apperrors "github.com/jun/repocms/internal/errors"
	"github.com/jun/repocms/internal/handler"
	"github.com/jun/repocms/internal/markdown"
	"github.com/jun/repocms/internal/secret"
	"github.com/jun/repocms/internal/session"
	"github.com/jun/repocms/internal/theme"
)

// CorrelationHeader carries the request id in and out.
const CorrelationHeader = "X-Correlation-ID"

// App holds the dependencies for the Lambda function.
type App struct {
	authHandler    *handler.AuthHandler
	contentHandler *handler.ContentHandler
	themeHandler   *handler.ThemeHandler
	previewHandler *handler.PreviewHandler
	staticHandler  *handler.StaticHandler

	sessions      *session.Manager
	table         table
	originSecret  string
	allowedOrigin string
	log           zerolog.Logger
}

// Deps are the collaborators of an App. NewApp builds them from config;
// tests construct them directly.
type Deps struct {
	Config   *config.Config
	Store    adapter.ContentStore
	Auth     *auth.AuthService
	Sessions *session.Manager
	// Theme defaults to a RepoStore on Config.ThemePath.
	Theme  theme.Store
	Static fs.FS
	Logger zerolog.Logger
}

// NewWithDeps assembles an App from ready-made dependencies.
func NewWithDeps(d Deps) *App {
	cfg := d.Config
	gateway := content.New(d.Store, content.Config{
		ContentRoot:       cfg.ContentRoot,
		Extension:         cfg.ContentExt,
		UploadRoot:        cfg.UploadRoot,
		ImageResizePrefix: content.DefaultConfig().ImageResizePrefix,
	}, content.WithLogger(d.Logger))

	themeStore := d.Theme
	if themeStore == nil {
		themeStore = theme.NewRepoStore(gateway, cfg.ThemePath)
	}
	static := d.Static
	if static == nil {
		static = os.DirFS(cfg.StaticDir)
	}

	a := &App{
		authHandler:    handler.NewAuthHandler(d.Auth, d.Sessions, d.Logger),
		contentHandler: handler.NewContentHandler(gateway, cfg.MaxUploadBytes),
		themeHandler:   handler.NewThemeHandler(themeStore),
		previewHandler: handler.NewPreviewHandler(markdown.NewRenderer()),
		staticHandler:  handler.NewStaticHandler(static),
		sessions:       d.Sessions,
		originSecret:   cfg.OriginVerifySecret,
		allowedOrigin:  cfg.AllowedOrigin,
		log:            d.Logger,
	}
	a.table = newTable(a.routes())
	return a
}

// NewApp initializes the application dependencies from cfg. Secrets are
// resolved here, so a misconfigured deployment fails at cold start.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	// 1. Secrets
	var resolver secret.Resolver = secret.NewEnvResolver()
	if cfg.SecretsBackend == "ssm" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(c))
	}
	if err := cfg.ResolveSecrets(ctx, resolver); err != nil {
		return nil, err
	}
	log.Info().Str("backend", cfg.SecretsBackend).Msg("secrets resolved")

	// 2. Sessions and OAuth
	sessions, err := session.NewManager([]byte(cfg.SessionSecret),
		session.WithMaxAge(cfg.SessionMaxAge),
		session.WithSecure(cfg.CookieSecure),
	)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	authService := auth.NewAuthService(oauthConfig(cfg),
		auth.WithAPIURL(cfg.GitHubAPIURL),
		auth.WithSecureCookies(cfg.CookieSecure),
	)

	// 3. Content store
	var store adapter.ContentStore
	if cfg.DevMode && cfg.RepoAccessToken == "" {
		store = memory.New()
		log.Warn().Msg("DEV_MODE without REPO_ACCESS_TOKEN: using in-memory repository")
	} else {
		client, err := githubrepo.NewClient(cfg.RepoAccessToken, cfg.GitHubAPIURL)
		if err != nil {
			return nil, fmt.Errorf("github client: %w", err)
		}
		repo := githubrepo.Repo{Owner: cfg.RepoOwner, Name: cfg.RepoName, Branch: cfg.RepoBranch}
		store = githubrepo.New(client, repo, log)
		log.Info().Str("repo", repo.String()).Msg("using github repository")
	}

	// 4. Theme
	var themeStore theme.Store
	if cfg.ThemeTable != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		themeStore = theme.NewDynamoStore(dynamodb.NewFromConfig(c), cfg.ThemeTable)
	}

	return NewWithDeps(Deps{
		Config:   cfg,
		Store:    store,
		Auth:     authService,
		Sessions: sessions,
		Theme:    themeStore,
		Logger:   log,
	}), nil
}

func oauthConfig(cfg *config.Config) *oauth2.Config {
	endpoint := githuboauth.Endpoint
	if cfg.OAuthAuthURL != "" {
		endpoint.AuthURL = cfg.OAuthAuthURL
	}
	if cfg.OAuthTokenURL != "" {
		endpoint.TokenURL = cfg.OAuthTokenURL
	}
	// GitHub accepts credentials in the form body; this skips auto-detection.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.OAuthRedirectURI,
		Scopes:       cfg.OAuthScopes,
		Endpoint:     endpoint,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (a *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	start := time.Now()
	id := handler.GetHeader(req, CorrelationHeader)
	if id == "" {
		id = uuid.NewString()
	}
	log := a.log.With().Str("correlation_id", id).Logger()
	ctx = log.WithContext(ctx)

	var login string
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("path", req.Path).Msg("handler panicked")
			resp, err = handler.ErrorResponse(apperrors.New(apperrors.KindInternal, "internal error")), nil
		}
		a.corsHeaders(&resp)
		if resp.Headers == nil {
			resp.Headers = map[string]string{}
		}
		resp.Headers[CorrelationHeader] = id

		ev := log.Info()
		if resp.StatusCode >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev = ev.Str("method", req.HTTPMethod).
			Str("path", req.Path).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start))
		if login != "" {
			ev = ev.Str("login", login)
		}
		ev.Msg("request")
	}()

	resp, login = a.dispatch(ctx, req, log)
	return resp, nil
}

// dispatch runs the routing steps in order and returns the response plus the
// login of the verified session, if any.
func (a *App) dispatch(ctx context.Context, req events.APIGatewayProxyRequest, log zerolog.Logger) (events.APIGatewayProxyResponse, string) {
	method, path := req.HTTPMethod, req.Path

	// 1. CORS preflight
	if method == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, ""
	}

	// 2. Only CloudFront knows the origin secret.
	if a.originSecret != "" {
		got := handler.GetHeader(req, "X-Origin-Verify")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.originSecret)) != 1 {
			log.Warn().Str("path", path).Msg("missing or invalid X-Origin-Verify header")
			return plainStatus(http.StatusForbidden, "Forbidden"), ""
		}
	}

	// 3. Every /api/ path requires a session, known route or not.
	var login string
	if isAPI(path) {
		s, err := a.sessions.FromCookieHeader(handler.GetHeader(req, "Cookie"))
		if err != nil {
			return handler.ErrorResponse(apperrors.New(apperrors.KindUnauthorized, "Unauthorized")), ""
		}
		ctx = session.NewContext(ctx, s)
		login = s.Subject
	}

	// 4. Exact match, or 405 for a known path.
	route, allow, found := a.table.lookup(method, path)
	if found && allow != nil {
		resp := plainStatus(http.StatusMethodNotAllowed, "Method not allowed")
		resp.Headers["Allow"] = strings.Join(allow, ", ")
		return resp, login
	}
	if found {
		return a.invoke(ctx, route.Handler, req, log), login
	}

	// 5. Static assets
	if !isAPI(path) && (method == http.MethodGet || method == http.MethodHead) {
		return a.invoke(ctx, a.staticHandler.Serve, req, log), login
	}
	return handler.ErrorResponse(apperrors.New(apperrors.KindNotFound, "Not found")), login
}

func (a *App) invoke(ctx context.Context, h HandlerFunc, req events.APIGatewayProxyRequest, log zerolog.Logger) events.APIGatewayProxyResponse {
	resp, err := h(ctx, req)
	if err == nil {
		return resp
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindUpstream, apperrors.KindInternal:
		log.Error().Err(err).Str("path", req.Path).Msg("request failed")
	default:
		log.Debug().Err(err).Str("path", req.Path).Msg("request rejected")
	}
	return handler.ErrorResponse(err)
}
