package delivery

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires all pages behind the access gate.
func NewRouter(deps AppDependencies) http.Handler {
	r := chi.NewRouter()

	h := &HTTPEndpoint{
		app: deps,
	}

	// --- Global Middleware ---
	r.Use(middleware.RequestID)
	r.Use(requestLogger(deps))
	r.Use(middleware.Recoverer)

	// --- Static File Server ---
	fileServer := http.FileServer(http.Dir("./static/"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// The gate classifies every route itself; public routes short-circuit
	// inside it, so it wraps everything uniformly.
	r.Group(func(r chi.Router) {
		r.Use(deps.Gate)

		// --- Public pages ---
		r.Get("/sign-in", h.signInHandler)
		r.Post("/sign-in", h.signInSubmitHandler)
		r.Post("/sign-in/second-factor", h.secondFactorHandler)
		r.Post("/sign-in/second-factor/toggle", h.secondFactorToggleHandler)
		r.Post("/sign-in/reset", h.resetStartHandler)
		r.Post("/sign-in/reset/request", h.resetRequestHandler)
		r.Post("/sign-in/reset/resend", h.resetResendHandler)
		r.Post("/sign-in/reset/complete", h.resetCompleteHandler)
		r.Post("/sign-in/reset/back", h.resetBackHandler)
		r.Post("/sign-in/back", h.signInBackHandler)

		r.Get("/sign-up", h.signUpHandler)
		r.Post("/sign-up", h.signUpSubmitHandler)
		r.Post("/sign-up/verify", h.verifyEmailHandler)
		r.Post("/sign-up/resend", h.resendVerificationHandler)
		r.Post("/sign-up/back", h.signUpBackHandler)

		r.Get("/sso-callback", h.ssoCallbackHandler)
		r.Get("/sign-out", h.signOutHandler)
		r.Get("/error", h.errorHandler)

		r.Get("/session-tasks", h.sessionTasksHandler)
		r.Post("/session-tasks", h.sessionTasksSubmitHandler)

		// --- Protected pages ---
		r.Get("/", h.homeHandler)
		r.Get("/user/profile", h.profileHandler)

		r.Get("/create-organization", h.createOrganizationHandler)
		r.Post("/create-organization", h.createOrganizationSubmitHandler)
		r.Post("/create-organization/skip", h.skipOrganizationHandler)

		r.Get("/account/manage-mfa", h.manageMFAHandler)
		r.Post("/account/manage-mfa/disable", h.disableTOTPHandler)
		r.Post("/account/manage-mfa/backup-codes", h.backupCodesHandler)

		r.Get("/account/manage-mfa/add", h.addMFAHandler)
		r.Post("/account/manage-mfa/add/continue", h.addMFAContinueHandler)
		r.Post("/account/manage-mfa/add/reset", h.addMFAResetHandler)
		r.Post("/account/manage-mfa/add/verify", h.addMFAVerifyHandler)
	})

	return r
}

// requestLogger logs one line per request with the request ID.
func requestLogger(deps AppDependencies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			deps.Logger().Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
