package flow

import (
	"context"

	"github.com/google/uuid"

	"auth-portal/identity"
)

// SignUpStep is the visible step of the sign-up flow.
type SignUpStep int

const (
	StepRegistration SignUpStep = iota
	StepVerifyEmail
	StepRegistered
)

func (s SignUpStep) String() string {
	switch s {
	case StepVerifyEmail:
		return "verify_email"
	case StepRegistered:
		return "registered"
	default:
		return "registration"
	}
}

// SignUp sequences registration and email verification. Registration fields
// other than the password are retained across failed attempts; the password
// only ever lives in the submitted form.
type SignUp struct {
	ID   string     `json:"id"`
	Step SignUpStep `json:"step"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`

	Handle identity.AccountHandle `json:"handle"`
	Notice string                 `json:"notice"`

	Submission
}

// NewSignUp starts a fresh sign-up flow.
func NewSignUp() *SignUp {
	return &SignUp{ID: uuid.NewString(), Step: StepRegistration}
}

// SubmitRegistration creates the account and unconditionally requests email
// verification. Any failure surfaces a notice and stays on the registration
// form with the entered fields retained.
func (f *SignUp) SubmitRegistration(ctx context.Context, c identity.Client, account identity.NewAccount, seq uint64) {
	f.FirstName = account.FirstName
	f.LastName = account.LastName
	f.Email = account.Email

	switch {
	case account.FirstName == "" || account.LastName == "":
		f.settleWith(seq, "Please enter your first and last name.")
		return
	case !validEmail(account.Email):
		f.settleWith(seq, "Please enter a valid email address.")
		return
	case len(account.Password) < minPasswordLen:
		f.settleWith(seq, "Password must be at least 8 characters long.")
		return
	}

	handle, err := c.CreateAccount(ctx, account)
	if err != nil {
		f.settleWith(seq, identity.UserMessage(err))
		return
	}
	handle, err = c.PrepareEmailVerification(ctx, handle)
	if !f.settle(seq) {
		return
	}
	if err != nil {
		f.Step = StepRegistration
		f.Notice = identity.UserMessage(err)
		return
	}
	f.Handle = handle
	f.Step = StepVerifyEmail
	f.Notice = "Please check your email for a verification code."
}

// SubmitVerification checks the emailed code. Completion hands the user to
// sign-in with the post-signup hint; anything else stays here with a notice.
func (f *SignUp) SubmitVerification(ctx context.Context, c identity.Client, code string, seq uint64) Effect {
	if !ValidCode(code) {
		f.settleWith(seq, "Enter the 6-digit code from your email.")
		return Effect{}
	}

	res, err := c.AttemptEmailVerification(ctx, f.Handle, code)
	if !f.settle(seq) {
		return Effect{}
	}
	if err != nil {
		f.Step = StepVerifyEmail
		f.Notice = identity.UserMessage(err)
		return Effect{}
	}
	if !res.Complete {
		f.Step = StepVerifyEmail
		f.Notice = "Verification failed. Please try again."
		return Effect{}
	}
	f.Step = StepRegistered
	f.Notice = ""
	return Effect{Redirect: "/sign-in?from=signup"}
}

// ResendCode requests a fresh verification code for the same account.
func (f *SignUp) ResendCode(ctx context.Context, c identity.Client, seq uint64) {
	handle, err := c.PrepareEmailVerification(ctx, f.Handle)
	if !f.settle(seq) {
		return
	}
	if err != nil {
		f.Notice = identity.UserMessage(err)
		return
	}
	f.Handle = handle
	f.Notice = "Verification code resent to your email."
}

// Back returns to the registration form, discarding only the verification
// code (which is never persisted here anyway).
func (f *SignUp) Back() {
	f.Step = StepRegistration
	f.Notice = ""
	f.Abandon()
}

func (f *SignUp) settleWith(seq uint64, notice string) {
	if f.settle(seq) {
		f.Notice = notice
	}
}
