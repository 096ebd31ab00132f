package flow

import (
	"context"

	"github.com/google/uuid"

	"auth-portal/identity"
)

// SignInStep is the visible step of the sign-in flow. The transient
// "submitting" phases are expressed by the Submission guard, not by extra
// step values: a step with InFlight set is that step's submitting state.
type SignInStep int

const (
	StepCredentials SignInStep = iota
	StepSecondFactor
	StepResetEmail
	StepResetCode
	StepSignedIn
)

func (s SignInStep) String() string {
	switch s {
	case StepSecondFactor:
		return "second_factor"
	case StepResetEmail:
		return "reset_email"
	case StepResetCode:
		return "reset_code"
	case StepSignedIn:
		return "signed_in"
	default:
		return "credentials"
	}
}

// SignIn sequences first factor, second factor and the password-reset
// sub-flow. All provider calls go through the injected identity.Client.
type SignIn struct {
	ID   string     `json:"id"`
	Step SignInStep `json:"step"`

	// Identifier is retained across failed attempts and reset steps.
	Identifier string `json:"identifier"`
	// UseBackupCode switches the second-factor strategy from TOTP to a
	// one-time backup code.
	UseBackupCode bool `json:"use_backup_code"`

	// SessionToken is the half-authenticated token held between the first
	// and second factor.
	SessionToken string `json:"session_token"`

	Reset identity.ResetHandle `json:"reset"`
	// ResetCode is retained on a failed reset so the user can correct it.
	ResetCode string `json:"reset_code"`

	// Notice is the current user-visible message (error or hint).
	Notice string `json:"notice"`
	// FromSignup marks arrival via the post-signup redirect hint; the page
	// uses it to suggest MFA enrollment after signing in.
	FromSignup bool `json:"from_signup"`
	// ReturnTo is the originally requested path to resume after sign-in.
	ReturnTo string `json:"return_to"`

	Submission
}

// NewSignIn starts a fresh sign-in flow.
func NewSignIn(returnTo string, fromSignup bool) *SignIn {
	return &SignIn{
		ID:         uuid.NewString(),
		Step:       StepCredentials,
		ReturnTo:   returnTo,
		FromSignup: fromSignup,
	}
}

func (f *SignIn) destination() string {
	if f.ReturnTo != "" {
		return f.ReturnTo
	}
	return "/"
}

// SubmitFirstFactor runs the identifier/password step. Provider rejections
// surface as a notice and return the flow to credential collection; they are
// never fatal.
func (f *SignIn) SubmitFirstFactor(ctx context.Context, c identity.Client, identifier, password string, seq uint64) Effect {
	if identifier == "" || password == "" {
		f.settleWith(seq, "Please enter your email address and password.")
		return Effect{}
	}
	if !validEmail(identifier) {
		f.settleWith(seq, "Please enter a valid email address.")
		return Effect{}
	}

	res, err := c.BeginSignIn(ctx, identifier, password)
	if !f.settle(seq) {
		return Effect{}
	}
	if err != nil {
		f.Step = StepCredentials
		f.Notice = identity.UserMessage(err)
		return Effect{}
	}

	f.Identifier = identifier
	switch res.Status {
	case identity.SignInNeedsSecondFactor:
		f.Step = StepSecondFactor
		f.SessionToken = res.SessionToken
		f.Notice = ""
		return Effect{}
	default:
		return f.complete(ctx, c, res.SessionToken)
	}
}

// SubmitSecondFactor attempts the TOTP or backup-code factor using the
// half-authenticated token from the first step.
func (f *SignIn) SubmitSecondFactor(ctx context.Context, c identity.Client, code string, seq uint64) Effect {
	strategy := identity.StrategyTOTP
	if f.UseBackupCode {
		strategy = identity.StrategyBackupCode
	}
	if strategy == identity.StrategyTOTP && !ValidCode(code) {
		f.settleWith(seq, "Enter the 6-digit code from your authenticator app.")
		return Effect{}
	}
	if code == "" {
		f.settleWith(seq, "Enter one of your backup codes.")
		return Effect{}
	}

	res, err := c.AttemptSecondFactor(ctx, f.SessionToken, code, strategy)
	if !f.settle(seq) {
		return Effect{}
	}
	if err != nil {
		f.Step = StepSecondFactor
		f.Notice = identity.UserMessage(err)
		return Effect{}
	}
	return f.complete(ctx, c, res.SessionToken)
}

// ToggleBackupCode flips the second-factor strategy. Pure view state.
func (f *SignIn) ToggleBackupCode() {
	f.UseBackupCode = !f.UseBackupCode
	f.Notice = ""
}

// StartReset enters the password-reset sub-flow.
func (f *SignIn) StartReset() {
	f.Step = StepResetEmail
	f.Notice = ""
}

// SubmitResetRequest asks the provider to email a recovery code.
func (f *SignIn) SubmitResetRequest(ctx context.Context, c identity.Client, email string, seq uint64) {
	if !validEmail(email) {
		f.settleWith(seq, "Please enter a valid email address.")
		return
	}
	handle, err := c.RequestPasswordResetCode(ctx, email)
	if !f.settle(seq) {
		return
	}
	if err != nil {
		f.Step = StepResetEmail
		f.Notice = identity.UserMessage(err)
		return
	}
	f.Reset = handle
	f.Identifier = email
	f.Step = StepResetCode
	f.Notice = "We sent a recovery code to " + email + "."
}

// ResendResetCode re-requests the recovery code without touching any field
// the user has already entered.
func (f *SignIn) ResendResetCode(ctx context.Context, c identity.Client, seq uint64) {
	handle, err := c.RequestPasswordResetCode(ctx, f.Reset.Email)
	if !f.settle(seq) {
		return
	}
	if err != nil {
		f.Notice = identity.UserMessage(err)
		return
	}
	f.Reset = handle
	f.Notice = "We sent a new recovery code to " + f.Reset.Email + "."
}

// SubmitReset submits the recovery code and replacement password. On failure
// the flow stays in code collection with the entered code retained.
func (f *SignIn) SubmitReset(ctx context.Context, c identity.Client, code, newPassword string, seq uint64) Effect {
	if !ValidCode(code) {
		f.settleWith(seq, "Enter the 6-digit recovery code from your email.")
		f.ResetCode = code
		return Effect{}
	}
	if len(newPassword) < minPasswordLen {
		f.settleWith(seq, "The new password must be at least 8 characters long.")
		f.ResetCode = code
		return Effect{}
	}

	res, err := c.CompletePasswordReset(ctx, f.Reset, code, newPassword)
	if !f.settle(seq) {
		return Effect{}
	}
	if err != nil {
		f.Step = StepResetCode
		f.ResetCode = code
		f.Notice = identity.UserMessage(err)
		return Effect{}
	}
	f.ResetCode = ""
	return f.complete(ctx, c, res.SessionToken)
}

// BackToResetEmail leaves code collection, discarding the entered code.
func (f *SignIn) BackToResetEmail() {
	f.Step = StepResetEmail
	f.ResetCode = ""
	f.Notice = ""
	f.Abandon()
}

// BackToCredentials abandons any sub-flow and returns to the first factor.
func (f *SignIn) BackToCredentials() {
	f.Step = StepCredentials
	f.SessionToken = ""
	f.ResetCode = ""
	f.Notice = ""
	f.Abandon()
}

// complete activates the provider session and ends the flow. Activation
// happens exactly once per completed sign-in.
func (f *SignIn) complete(ctx context.Context, c identity.Client, token string) Effect {
	if _, err := c.ActivateSession(ctx, token); err != nil {
		f.Notice = identity.UserMessage(err)
		return Effect{}
	}
	f.Step = StepSignedIn
	f.Notice = ""
	return Effect{Redirect: f.destination(), SessionToken: token}
}

func (f *SignIn) settleWith(seq uint64, notice string) {
	if f.settle(seq) {
		f.Notice = notice
	}
}
