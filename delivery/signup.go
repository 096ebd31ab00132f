package delivery

import (
	"errors"
	"net/http"

	"auth-portal/delivery/model"
	"auth-portal/flow"
	"auth-portal/identity"
)

// signUpPageData feeds the sign-up template, which renders both the
// registration and the verification step off the flow's Step.
type signUpPageData struct {
	Flow *flow.SignUp
}

func (h *HTTPEndpoint) renderSignUp(w http.ResponseWriter, f *flow.SignUp) {
	if err := signUpTemplate.ExecuteTemplate(w, "sign_up.html", signUpPageData{Flow: f}); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute sign-up template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

// signUpHandler starts a fresh sign-up flow for every GET.
func (h *HTTPEndpoint) signUpHandler(w http.ResponseWriter, r *http.Request) {
	f := flow.NewSignUp()
	if err := h.app.Flows().SaveSignUp(f); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to save sign-up flow")
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	h.renderSignUp(w, f)
}

func (h *HTTPEndpoint) loadSignUp(w http.ResponseWriter, r *http.Request) *flow.SignUp {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil
	}
	f, err := h.app.Flows().LoadSignUp(r.Form.Get("flow"))
	if err != nil {
		if !errors.Is(err, flow.ErrNotFound) {
			h.app.Logger().Error().Err(err).Msg("failed to load sign-up flow")
		}
		http.Redirect(w, r, "/sign-up", http.StatusSeeOther)
		return nil
	}
	return f
}

func (h *HTTPEndpoint) saveSignUp(f *flow.SignUp) {
	if err := h.app.Flows().SaveSignUp(f); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to save sign-up flow")
	}
}

// beginSignUp atomically loads the posted flow and claims its submission
// slot, mirroring beginSignIn.
func (h *HTTPEndpoint) beginSignUp(w http.ResponseWriter, r *http.Request) (*flow.SignUp, uint64, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return nil, 0, false
	}
	f, seq, err := h.app.Flows().BeginSignUp(r.Form.Get("flow"))
	switch {
	case err == nil:
		return f, seq, true
	case errors.Is(err, flow.ErrSubmitInFlight):
		h.renderSignUp(w, f)
		return nil, 0, false
	default:
		if !errors.Is(err, flow.ErrNotFound) {
			h.app.Logger().Error().Err(err).Msg("failed to load sign-up flow")
		}
		http.Redirect(w, r, "/sign-up", http.StatusSeeOther)
		return nil, 0, false
	}
}

// signUpSubmitHandler creates the account and requests email verification.
func (h *HTTPEndpoint) signUpSubmitHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignUp(w, r)
	if !ok {
		return
	}
	form := model.BindSignUp(r)

	f.SubmitRegistration(r.Context(), h.app.Identity(), identity.NewAccount{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
	}, seq)
	h.saveSignUp(f)
	h.renderSignUp(w, f)
}

// verifyEmailHandler submits the emailed verification code.
func (h *HTTPEndpoint) verifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignUp(w, r)
	if !ok {
		return
	}
	form := model.BindCode(r)

	eff := f.SubmitVerification(r.Context(), h.app.Identity(), form.Code, seq)
	h.saveSignUp(f)
	if eff.Redirect != "" {
		http.Redirect(w, r, eff.Redirect, http.StatusSeeOther)
		return
	}
	h.renderSignUp(w, f)
}

// resendVerificationHandler requests a fresh code.
func (h *HTTPEndpoint) resendVerificationHandler(w http.ResponseWriter, r *http.Request) {
	f, seq, ok := h.beginSignUp(w, r)
	if !ok {
		return
	}
	f.ResendCode(r.Context(), h.app.Identity(), seq)
	h.saveSignUp(f)
	h.renderSignUp(w, f)
}

// signUpBackHandler returns to the registration form.
func (h *HTTPEndpoint) signUpBackHandler(w http.ResponseWriter, r *http.Request) {
	f := h.loadSignUp(w, r)
	if f == nil {
		return
	}
	f.Back()
	h.saveSignUp(f)
	h.renderSignUp(w, f)
}
