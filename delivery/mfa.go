package delivery

import (
	"errors"
	"net/http"
	"net/url"

	"auth-portal/delivery/model"
	"auth-portal/flow"
	"auth-portal/identity"
)

// manageMFAPageData feeds the MFA management page.
type manageMFAPageData struct {
	Session identity.Session
	// BackupCodes is non-nil right after generation; each code is shown
	// exactly once.
	BackupCodes []string
	Notice      string
}

func (h *HTTPEndpoint) renderManageMFA(w http.ResponseWriter, data manageMFAPageData) {
	if err := manageMFATemplate.ExecuteTemplate(w, "manage_mfa.html", data); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute manage-mfa template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

// resolveFullSession does a full provider lookup (the gate's fast path does
// not report MFA enrollment state). The sign-in redirect carries the
// requested path, matching the gate's return_to convention.
func (h *HTTPEndpoint) resolveFullSession(w http.ResponseWriter, r *http.Request) (identity.Session, string, bool) {
	token := h.sessionToken(r)
	sess, err := h.app.Identity().ResolveSession(r.Context(), token)
	if err != nil {
		http.Redirect(w, r, "/sign-in?return_to="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
		return identity.Session{}, "", false
	}
	return sess, token, true
}

// manageMFAHandler shows TOTP status and the backup-code section.
func (h *HTTPEndpoint) manageMFAHandler(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.resolveFullSession(w, r)
	if !ok {
		return
	}
	h.renderManageMFA(w, manageMFAPageData{Session: sess})
}

// disableTOTPHandler fires the single step-up-guarded disable call and
// refreshes the page with the new status or a notice.
func (h *HTTPEndpoint) disableTOTPHandler(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.resolveFullSession(w, r)
	if !ok {
		return
	}
	if err := h.app.Identity().DisableTOTP(r.Context(), token); err != nil {
		h.renderManageMFA(w, manageMFAPageData{Session: sess, Notice: identity.UserMessage(err)})
		return
	}
	sess.TOTPEnabled = false
	h.renderManageMFA(w, manageMFAPageData{Session: sess, Notice: "Authenticator app disabled."})
}

// backupCodesHandler generates and displays fresh one-time backup codes. A
// failure renders a visible notice; it is never silently dropped.
func (h *HTTPEndpoint) backupCodesHandler(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.resolveFullSession(w, r)
	if !ok {
		return
	}
	codes, err := h.app.Identity().CreateBackupCodes(r.Context(), token)
	if err != nil {
		h.renderManageMFA(w, manageMFAPageData{
			Session: sess,
			Notice:  "There was a problem generating backup codes. " + identity.UserMessage(err),
		})
		return
	}
	sess.BackupCodesEnabled = true
	h.renderManageMFA(w, manageMFAPageData{
		Session:     sess,
		BackupCodes: codes,
		Notice:      "Store these codes securely; they are shown only once.",
	})
}

// addMFAPageData feeds the enrollment page. DisplayFormat toggles QR vs raw
// URI and is carried in the query string only.
type addMFAPageData struct {
	Flow          *flow.Enroll
	DisplayFormat string
}

func (h *HTTPEndpoint) renderAddMFA(w http.ResponseWriter, f *flow.Enroll, format string) {
	if format != "uri" {
		format = "qr"
	}
	data := addMFAPageData{Flow: f, DisplayFormat: format}
	if err := addMFATemplate.ExecuteTemplate(w, "add_mfa.html", data); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute add-mfa template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

// addMFAHandler starts enrollment: a fresh flow and a freshly provisioned
// secret on every GET.
func (h *HTTPEndpoint) addMFAHandler(w http.ResponseWriter, r *http.Request) {
	_, token, ok := h.resolveFullSession(w, r)
	if !ok {
		return
	}
	f := flow.NewEnroll()
	f.Start(r.Context(), h.app.Identity(), token)
	if err := h.app.Flows().SaveEnroll(f); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to save enroll flow")
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	h.renderAddMFA(w, f, r.URL.Query().Get("format"))
}

func (h *HTTPEndpoint) loadEnroll(w http.ResponseWriter, r *http.Request) *flow.Enroll {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil
	}
	f, err := h.app.Flows().LoadEnroll(r.Form.Get("flow"))
	if err != nil {
		if !errors.Is(err, flow.ErrNotFound) {
			h.app.Logger().Error().Err(err).Msg("failed to load enroll flow")
		}
		http.Redirect(w, r, "/account/manage-mfa/add", http.StatusSeeOther)
		return nil
	}
	return f
}

func (h *HTTPEndpoint) saveEnroll(f *flow.Enroll) {
	if err := h.app.Flows().SaveEnroll(f); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to save enroll flow")
	}
}

// beginEnroll atomically loads the posted flow and claims its submission
// slot, mirroring beginSignIn.
func (h *HTTPEndpoint) beginEnroll(w http.ResponseWriter, r *http.Request) (*flow.Enroll, uint64, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil, 0, false
	}
	f, seq, err := h.app.Flows().BeginEnroll(r.Form.Get("flow"))
	switch {
	case err == nil:
		return f, seq, true
	case errors.Is(err, flow.ErrSubmitInFlight):
		h.renderAddMFA(w, f, r.Form.Get("format"))
		return nil, 0, false
	default:
		if !errors.Is(err, flow.ErrNotFound) {
			h.app.Logger().Error().Err(err).Msg("failed to load enroll flow")
		}
		http.Redirect(w, r, "/account/manage-mfa/add", http.StatusSeeOther)
		return nil, 0, false
	}
}

// addMFAContinueHandler advances from the QR step to code verification.
func (h *HTTPEndpoint) addMFAContinueHandler(w http.ResponseWriter, r *http.Request) {
	f := h.loadEnroll(w, r)
	if f == nil {
		return
	}
	f.ContinueToVerify()
	h.saveEnroll(f)
	h.renderAddMFA(w, f, r.Form.Get("format"))
}

// addMFAResetHandler re-provisions the secret and returns to the add step.
func (h *HTTPEndpoint) addMFAResetHandler(w http.ResponseWriter, r *http.Request) {
	f := h.loadEnroll(w, r)
	if f == nil {
		return
	}
	_, token, ok := h.resolveFullSession(w, r)
	if !ok {
		return
	}
	f.Start(r.Context(), h.app.Identity(), token)
	h.saveEnroll(f)
	h.renderAddMFA(w, f, r.Form.Get("format"))
}

// addMFAVerifyHandler submits the 6-digit confirmation code.
func (h *HTTPEndpoint) addMFAVerifyHandler(w http.ResponseWriter, r *http.Request) {
	_, token, ok := h.resolveFullSession(w, r)
	if !ok {
		return
	}
	f, seq, ok := h.beginEnroll(w, r)
	if !ok {
		return
	}
	form := model.BindCode(r)

	f.SubmitVerify(r.Context(), h.app.Identity(), token, form.Code, seq)
	h.saveEnroll(f)
	h.renderAddMFA(w, f, r.Form.Get("format"))
}
