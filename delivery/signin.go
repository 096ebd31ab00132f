package delivery

import (
	"errors"
	"net/http"

	"auth-portal/delivery/model"
	"auth-portal/flow"
)

// signInPageData feeds the sign-in template; the same template renders the
// credential, second-factor and reset steps off the flow's Step.
type signInPageData struct {
	Flow       *flow.SignIn
	Identifier string
}

func (h *HTTPEndpoint) renderSignIn(w http.ResponseWriter, f *flow.SignIn) {
	data := signInPageData{Flow: f, Identifier: f.Identifier}
	if err := signInTemplate.ExecuteTemplate(w, "sign_in.html", data); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute sign-in template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

// signInHandler starts a fresh sign-in flow for every GET.
func (h *HTTPEndpoint) signInHandler(w http.ResponseWriter, r *http.Request) {
	f := flow.NewSignIn(
		sanitizeReturnTo(r.URL.Query().Get("return_to")),
		r.URL.Query().Get("from") == "signup",
	)
	if err := h.app.Flows().SaveSignIn(f); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to save sign-in flow")
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	h.renderSignIn(w, f)
}

// loadSignIn fetches the flow named by the posted form. A missing or expired
// flow restarts at the sign-in page.
func (h *HTTPEndpoint) loadSignIn(w http.ResponseWriter, r *http.Request) *flow.SignIn {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil
	}
	f, err := h.app.Flows().LoadSignIn(r.Form.Get("flow"))
	if err != nil {
		if !errors.Is(err, flow.ErrNotFound) {
			h.app.Logger().Error().Err(err).Msg("failed to load sign-in flow")
		}
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
		return nil
	}
	return f
}

// beginSignIn atomically loads the posted flow and claims its submission
// slot. An in-flight resubmission re-renders the current step as a no-op; a
// missing or expired flow restarts at the sign-in page.
func (h *HTTPEndpoint) beginSignIn(w http.ResponseWriter, r *http.Request) (*flow.SignIn, uint64, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil, 0, false
	}
	f, seq, err := h.app.Flows().BeginSignIn(r.Form.Get("flow"))
	switch {
	case err == nil:
		return f, seq, true
	case errors.Is(err, flow.ErrSubmitInFlight):
		h.renderSignIn(w, f)
		return nil, 0, false
	default:
		if !errors.Is(err, flow.ErrNotFound) {
			h.app.Logger().Error().Err(err).Msg("failed to load sign-in flow")
		}
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
		return nil, 0, false
	}
}

func (h *HTTPEndpoint) saveSignIn(f *flow.SignIn) {
	if err := h.app.Flows().SaveSignIn(f); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to save sign-in flow")
	}
}

// finishSignIn applies a transition's effect: bind the session, navigate, or
// re-render the current step.
func (h *HTTPEndpoint) finishSignIn(w http.ResponseWriter, r *http.Request, f *flow.SignIn, eff flow.Effect) {
	if eff.SessionToken != "" {
		h.setSessionCookie(w, eff.SessionToken)
	}
	if eff.Redirect != "" {
		http.Redirect(w, r, eff.Redirect, http.StatusSeeOther)
		return
	}
	h.renderSignIn(w, f)
}

// signInSubmitHandler runs the first factor.
func (h *HTTPEndpoint) signInSubmitHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignIn(w, r)
	if !ok {
		return
	}
	form := model.BindSignIn(r)

	eff := f.SubmitFirstFactor(r.Context(), h.app.Identity(), form.Identifier, form.Password, seq)
	h.saveSignIn(f)
	h.finishSignIn(w, r, f, eff)
}

// secondFactorHandler runs the TOTP / backup-code factor.
func (h *HTTPEndpoint) secondFactorHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignIn(w, r)
	if !ok {
		return
	}
	form := model.BindCode(r)

	eff := f.SubmitSecondFactor(r.Context(), h.app.Identity(), form.Code, seq)
	h.saveSignIn(f)
	h.finishSignIn(w, r, f, eff)
}

// secondFactorToggleHandler flips between authenticator and backup codes.
func (h *HTTPEndpoint) secondFactorToggleHandler(w http.ResponseWriter, r *http.Request) {
	f := h.loadSignIn(w, r)
	if f == nil {
		return
	}
	f.ToggleBackupCode()
	h.saveSignIn(f)
	h.renderSignIn(w, f)
}

// resetStartHandler enters the password-reset sub-flow.
func (h *HTTPEndpoint) resetStartHandler(w http.ResponseWriter, r *http.Request) {
	f := h.loadSignIn(w, r)
	if f == nil {
		return
	}
	f.StartReset()
	h.saveSignIn(f)
	h.renderSignIn(w, f)
}

// resetRequestHandler asks the provider for a recovery code.
func (h *HTTPEndpoint) resetRequestHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignIn(w, r)
	if !ok {
		return
	}
	form := model.BindResetRequest(r)

	f.SubmitResetRequest(r.Context(), h.app.Identity(), form.Email, seq)
	h.saveSignIn(f)
	h.renderSignIn(w, f)
}

// resetResendHandler re-requests the recovery code, keeping entered fields.
func (h *HTTPEndpoint) resetResendHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignIn(w, r)
	if !ok {
		return
	}
	f.ResendResetCode(r.Context(), h.app.Identity(), seq)
	h.saveSignIn(f)
	h.renderSignIn(w, f)
}

// resetCompleteHandler submits the recovery code and new password.
func (h *HTTPEndpoint) resetCompleteHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignIn(w, r)
	if !ok {
		return
	}
	form := model.BindResetComplete(r)

	eff := f.SubmitReset(r.Context(), h.app.Identity(), form.Code, form.NewPassword, seq)
	h.saveSignIn(f)
	h.finishSignIn(w, r, f, eff)
}

// resetBackHandler returns from code collection to email collection.
func (h *HTTPEndpoint) resetBackHandler(w http.ResponseWriter, r *http.Request) {
	f := h.loadSignIn(w, r)
	if f == nil {
		return
	}
	f.BackToResetEmail()
	h.saveSignIn(f)
	h.renderSignIn(w, f)
}

// signInBackHandler abandons any sub-flow back to the credential form.
func (h *HTTPEndpoint) signInBackHandler(w http.ResponseWriter, r *http.Request) {
	f := h.loadSignIn(w, r)
	if f == nil {
		return
	}
	f.BackToCredentials()
	h.saveSignIn(f)
	h.renderSignIn(w, f)
}
