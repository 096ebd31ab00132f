package delivery

import (
	"net/http"
	"net/url"
	"strings"
)

// HTTPEndpoint holds the handlers' reference to the core application.
type HTTPEndpoint struct {
	app AppDependencies
}

type errorPageData struct {
	Reason string
}

// errorHandler renders the generic error page.
func (h *HTTPEndpoint) errorHandler(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "An unexpected error occurred."
	}

	w.WriteHeader(http.StatusInternalServerError)
	if err := errorTemplate.ExecuteTemplate(w, "error.html", errorPageData{Reason: reason}); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute error template")
		http.Error(w, "A critical error occurred and the error page could not be displayed.", http.StatusInternalServerError)
	}
}

// sessionToken reads the provider session token bound to the browser.
func (h *HTTPEndpoint) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(h.app.SessionCookie())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setSessionCookie binds a provider session token to the browser.
func (h *HTTPEndpoint) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.app.SessionCookie(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *HTTPEndpoint) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.app.SessionCookie(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sanitizeReturnTo keeps redirects on-site: only rooted local paths survive.
func sanitizeReturnTo(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	if u, err := url.Parse(raw); err != nil || u.Host != "" || u.Scheme != "" {
		return ""
	}
	return raw
}
