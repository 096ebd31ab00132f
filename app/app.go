package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"auth-portal/delivery"
	"auth-portal/flow"
	"auth-portal/gate"
	"auth-portal/identity"
)

// A private type for the context key to prevent collisions.
type contextKey string

// sessionContextKey is the key used to store the session in the request context.
const sessionContextKey contextKey = "session"

// App holds the application's dependencies and state: the provider client,
// the session resolver the gate uses, the flow store and the router.
type App struct {
	cfg      *Config
	log      zerolog.Logger
	client   identity.Client
	resolver identity.SessionResolver
	flows    *flow.Store
	policy   gate.Policy

	Router http.Handler
}

var _ delivery.AppDependencies = (*App)(nil)

// New creates a new App instance, configures dependencies, and sets up the
// router. When a JWKS URL is configured, session resolution tries the local
// token fast path first and falls back to the provider round trip.
func New(cfg *Config, log zerolog.Logger) (*App, error) {
	// Centralize template parsing at startup for efficiency.
	delivery.ParseAllTemplates(cfg.TemplateDir)

	client := identity.NewKratos(identity.KratosConfig{
		PublicURL:  cfg.KratosPublicURL,
		AdminURL:   cfg.KratosAdminURL,
		Timeout:    cfg.Timeout(),
		TOTPIssuer: cfg.TOTPIssuer,
	}, log)

	resolver := identity.SessionResolver(client)
	if cfg.JWKSURL != "" {
		verifier, err := identity.NewTokenVerifier(context.Background(), cfg.JWKSURL, log)
		if err != nil {
			return nil, err
		}
		resolver = identity.ChainResolver{verifier, client}
	}

	flows, err := flow.NewStore(cfg.FlowLifetime())
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:      cfg,
		log:      log,
		client:   client,
		resolver: resolver,
		flows:    flows,
		policy:   defaultPolicy(cfg),
	}
	app.Router = delivery.NewRouter(app)
	return app, nil
}

// defaultPolicy is the portal's route table. Public routes never redirect;
// setup-exempt routes stay reachable before organization setup finishes.
func defaultPolicy(cfg *Config) gate.Policy {
	return gate.Policy{
		PublicRoutes: gate.NewPatternSet([]string{
			"/sign-in/*",
			"/sign-up/*",
			"/sso-callback",
			"/sign-out",
			"/session-tasks",
			"/error",
			"/static/*",
		}),
		SetupExemptRoutes: gate.NewPatternSet([]string{
			"/create-organization/*",
			"/session-tasks",
			"/user/profile",
			"/account/*",
		}),
		SignInPath:        "/sign-in",
		PendingTasksPath:  "/session-tasks",
		CreateOrgPath:     "/create-organization",
		OrgGating:         cfg.OrgGating,
		PendingTaskGating: cfg.PendingTaskGating,
	}
}

// Start runs the HTTP server on the configured address.
func (a *App) Start() error {
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	a.log.Info().Str("addr", a.cfg.ListenAddr).Msg("server listening")
	return srv.ListenAndServe()
}

// Identity implements delivery.AppDependencies.
func (a *App) Identity() identity.Client { return a.client }

// Flows implements delivery.AppDependencies.
func (a *App) Flows() *flow.Store { return a.flows }

// SessionCookie implements delivery.AppDependencies.
func (a *App) SessionCookie() string { return a.cfg.SessionCookie }

// Logger implements delivery.AppDependencies.
func (a *App) Logger() *zerolog.Logger { return &a.log }

// Gate resolves the session once per request and applies the route policy.
// A session-resolution failure counts as no session: the gate fails closed,
// it never waves a request through on error.
func (a *App) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess identity.Session
		if cookie, err := r.Cookie(a.cfg.SessionCookie); err == nil && cookie.Value != "" {
			resolved, err := a.resolver.ResolveSession(r.Context(), cookie.Value)
			if err == nil {
				sess = resolved
			} else if !errors.Is(err, identity.ErrNoSession) {
				a.log.Warn().Err(err).Str("path", r.URL.Path).Msg("session resolution failed, treating as unauthenticated")
			}
		}

		outcome := a.policy.Evaluate(r.URL.Path, sess)
		if !outcome.Allowed {
			http.Redirect(w, r, outcome.Location, http.StatusSeeOther)
			return
		}

		if sess.Authenticated {
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext retrieves the session the gate resolved for this
// request. This can be used by any handler behind the gate.
func (a *App) SessionFromContext(ctx context.Context) (identity.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(identity.Session)
	return sess, ok
}
