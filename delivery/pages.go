package delivery

import (
	"net/http"

	"auth-portal/delivery/model"
	"auth-portal/identity"
)

type homePageData struct {
	Session identity.Session
}

// homeHandler renders the welcome page with the organization banner.
func (h *HTTPEndpoint) homeHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.app.SessionFromContext(r.Context())
	if err := homeTemplate.ExecuteTemplate(w, "home.html", homePageData{Session: sess}); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute home template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

// profileHandler renders the account profile page.
func (h *HTTPEndpoint) profileHandler(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.resolveFullSession(w, r)
	if !ok {
		return
	}
	if err := profileTemplate.ExecuteTemplate(w, "profile.html", homePageData{Session: sess}); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute profile template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

type sessionTasksPageData struct {
	Notice string
}

// sessionTasksHandler shows the outstanding-task page. A fully established
// session has nothing to do here and goes home.
func (h *HTTPEndpoint) sessionTasksHandler(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.app.SessionFromContext(r.Context()); ok &&
		sess.Authenticated && sess.Status == identity.SessionActive {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := sessionTasksTemplate.ExecuteTemplate(w, "session_tasks.html", sessionTasksPageData{}); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute session-tasks template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

// sessionTasksSubmitHandler completes the choose-organization task inline.
func (h *HTTPEndpoint) sessionTasksSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	form := model.BindOrganization(r)
	if form.Name == "" {
		h.renderSessionTasksNotice(w, "Please enter an organization name.")
		return
	}

	token := h.sessionToken(r)
	org, err := h.app.Identity().CreateOrganization(r.Context(), token, form.Name)
	if err != nil {
		h.renderSessionTasksNotice(w, identity.UserMessage(err))
		return
	}
	if err := h.app.Identity().SetActiveOrganization(r.Context(), token, org.ID); err != nil {
		h.renderSessionTasksNotice(w, identity.UserMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *HTTPEndpoint) renderSessionTasksNotice(w http.ResponseWriter, notice string) {
	if err := sessionTasksTemplate.ExecuteTemplate(w, "session_tasks.html", sessionTasksPageData{Notice: notice}); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute session-tasks template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

// ssoCallbackHandler lands external sign-in redirects and forwards to the
// originally requested page.
func (h *HTTPEndpoint) ssoCallbackHandler(w http.ResponseWriter, r *http.Request) {
	dest := sanitizeReturnTo(r.URL.Query().Get("return_to"))
	if dest == "" {
		dest = "/"
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// signOutHandler revokes the provider session and drops the cookie. The
// cookie is cleared even when revocation fails; the token then dies at its
// natural expiry.
func (h *HTTPEndpoint) signOutHandler(w http.ResponseWriter, r *http.Request) {
	if token := h.sessionToken(r); token != "" {
		if err := h.app.Identity().Logout(r.Context(), token); err != nil {
			h.app.Logger().Warn().Err(err).Msg("provider logout failed")
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
}
