package flow

import (
	"context"

	"github.com/google/uuid"

	"auth-portal/identity"
)

// EnrollStep is the linear MFA enrollment progression. There is no backward
// edge out of StepSuccess; revisiting the page starts a fresh flow.
type EnrollStep int

const (
	StepAdd EnrollStep = iota
	StepVerify
	StepSuccess
)

func (s EnrollStep) String() string {
	switch s {
	case StepVerify:
		return "verify"
	case StepSuccess:
		return "success"
	default:
		return "add"
	}
}

// Enroll drives authenticator (TOTP) enrollment: provision a secret, verify
// a 6-digit code, done. The QR-vs-URI display toggle is pure view state and
// lives in the query string, not here.
type Enroll struct {
	ID   string     `json:"id"`
	Step EnrollStep `json:"step"`

	Provision identity.TOTPProvision `json:"provision"`
	Notice    string                 `json:"notice"`

	Submission
}

// NewEnroll starts a fresh enrollment flow.
func NewEnroll() *Enroll {
	return &Enroll{ID: uuid.NewString(), Step: StepAdd}
}

// Start provisions the TOTP secret on entry to the add step. The provider
// step-up-guards this call; a step-up refusal surfaces as a notice telling
// the user to sign in again.
func (f *Enroll) Start(ctx context.Context, c identity.Client, sessionToken string) {
	prov, err := c.CreateTOTPSecret(ctx, sessionToken)
	if err != nil {
		f.Notice = identity.UserMessage(err)
		return
	}
	f.Provision = prov
	f.Step = StepAdd
	f.Notice = ""
}

// ContinueToVerify advances to code verification once the user has scanned
// the QR or copied the URI.
func (f *Enroll) ContinueToVerify() {
	if f.Step == StepAdd && f.Provision.Secret != "" {
		f.Step = StepVerify
		f.Notice = ""
	}
}

// CanSubmit gates the verify control: enabled iff the code is exactly six
// digits.
func (f *Enroll) CanSubmit(code string) bool {
	return f.Step == StepVerify && ValidCode(code)
}

// SubmitVerify confirms the provisioned secret. A rejected code stays in
// verify with the field cleared; an accepted one reaches success.
func (f *Enroll) SubmitVerify(ctx context.Context, c identity.Client, sessionToken, code string, seq uint64) {
	if !ValidCode(code) {
		f.settleWith(seq, "Enter the 6-digit code from your authenticator app.")
		return
	}

	err := c.VerifyTOTP(ctx, sessionToken, f.Provision.FlowID, code)
	if !f.settle(seq) {
		return
	}
	if err != nil {
		f.Step = StepVerify
		f.Notice = identity.UserMessage(err)
		return
	}
	f.Step = StepSuccess
	f.Notice = ""
}

func (f *Enroll) settleWith(seq uint64, notice string) {
	if f.settle(seq) {
		f.Notice = notice
	}
}
