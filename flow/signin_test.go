package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-portal/identity"
)

func begin(t *testing.T, s *Submission) uint64 {
	t.Helper()
	seq, err := s.Begin()
	require.NoError(t, err)
	return seq
}

func TestSignInCompleteActivatesExactlyOnce(t *testing.T) {
	c := &fakeClient{}
	f := NewSignIn("", false)

	eff := f.SubmitFirstFactor(context.Background(), c, "user@example.com", "hunter22", begin(t, &f.Submission))

	assert.Equal(t, StepSignedIn, f.Step)
	assert.Equal(t, "/", eff.Redirect)
	assert.Equal(t, "token", eff.SessionToken)
	assert.Equal(t, 1, c.activations)
	assert.False(t, f.InFlight)
}

func TestSignInHonorsReturnTo(t *testing.T) {
	c := &fakeClient{}
	f := NewSignIn("/account/manage-mfa", false)

	eff := f.SubmitFirstFactor(context.Background(), c, "user@example.com", "hunter22", begin(t, &f.Submission))

	assert.Equal(t, "/account/manage-mfa", eff.Redirect)
}

func TestSignInNeedsSecondFactor(t *testing.T) {
	c := &fakeClient{
		beginSignIn: func(identifier, password string) (identity.SignInResult, error) {
			return identity.SignInResult{Status: identity.SignInNeedsSecondFactor, SessionToken: "half"}, nil
		},
	}
	f := NewSignIn("", false)

	eff := f.SubmitFirstFactor(context.Background(), c, "user@example.com", "hunter22", begin(t, &f.Submission))

	assert.Equal(t, StepSecondFactor, f.Step)
	assert.Equal(t, "half", f.SessionToken)
	assert.Zero(t, eff, "no navigation until the second factor clears")
	assert.Equal(t, 0, c.activations, "half-authenticated sessions are never activated")
}

func TestSignInRejectionKeepsIdentifierVisible(t *testing.T) {
	c := &fakeClient{
		beginSignIn: func(identifier, password string) (identity.SignInResult, error) {
			return identity.SignInResult{}, identity.ErrInvalidCredentials
		},
	}
	f := NewSignIn("", false)

	f.SubmitFirstFactor(context.Background(), c, "user@example.com", "wrong", begin(t, &f.Submission))

	assert.Equal(t, StepCredentials, f.Step)
	assert.NotEmpty(t, f.Notice)
	assert.False(t, f.InFlight)
}

func TestSignInValidationSkipsProvider(t *testing.T) {
	c := &fakeClient{}
	f := NewSignIn("", false)

	f.SubmitFirstFactor(context.Background(), c, "not-an-email", "hunter22", begin(t, &f.Submission))

	assert.Equal(t, 0, c.beginCalls)
	assert.NotEmpty(t, f.Notice)
	assert.False(t, f.InFlight, "validation failures settle the submission")
}

func TestSecondFactorStrategyFollowsToggle(t *testing.T) {
	var got identity.SecondFactorStrategy
	c := &fakeClient{
		secondFactor: func(token, code string, strategy identity.SecondFactorStrategy) (identity.SignInResult, error) {
			got = strategy
			return identity.SignInResult{Status: identity.SignInComplete, SessionToken: token}, nil
		},
	}

	f := NewSignIn("", false)
	f.Step = StepSecondFactor
	f.SessionToken = "half"
	f.SubmitSecondFactor(context.Background(), c, "123456", begin(t, &f.Submission))
	assert.Equal(t, identity.StrategyTOTP, got)

	f = NewSignIn("", false)
	f.Step = StepSecondFactor
	f.SessionToken = "half"
	f.ToggleBackupCode()
	f.SubmitSecondFactor(context.Background(), c, "aaaa-bbbb", begin(t, &f.Submission))
	assert.Equal(t, identity.StrategyBackupCode, got)
}

func TestSecondFactorRejectedCodeStays(t *testing.T) {
	c := &fakeClient{
		secondFactor: func(token, code string, strategy identity.SecondFactorStrategy) (identity.SignInResult, error) {
			return identity.SignInResult{}, identity.ErrInvalidCode
		},
	}
	f := NewSignIn("", false)
	f.Step = StepSecondFactor
	f.SessionToken = "half"

	eff := f.SubmitSecondFactor(context.Background(), c, "000000", begin(t, &f.Submission))

	assert.Equal(t, StepSecondFactor, f.Step)
	assert.Zero(t, eff)
	assert.NotEmpty(t, f.Notice)
	assert.Equal(t, 0, c.activations)
}

func TestSubmissionRejectsConcurrentBegin(t *testing.T) {
	f := NewSignIn("", false)

	_, err := f.Begin()
	require.NoError(t, err)

	_, err = f.Begin()
	assert.ErrorIs(t, err, ErrSubmitInFlight)
}

func TestStaleSettleIsDropped(t *testing.T) {
	c := &fakeClient{}
	f := NewSignIn("", false)

	seq := begin(t, &f.Submission)
	// The user backed out before the provider answered.
	f.BackToCredentials()

	eff := f.SubmitFirstFactor(context.Background(), c, "user@example.com", "hunter22", seq)

	assert.Zero(t, eff, "late results from abandoned submissions carry no effect")
	assert.Equal(t, StepCredentials, f.Step)
	assert.Empty(t, f.Notice)
	assert.Equal(t, 0, c.activations)
}

func TestResetFlowTransitions(t *testing.T) {
	c := &fakeClient{}
	f := NewSignIn("", false)

	f.StartReset()
	assert.Equal(t, StepResetEmail, f.Step)

	f.SubmitResetRequest(context.Background(), c, "user@example.com", begin(t, &f.Submission))
	assert.Equal(t, StepResetCode, f.Step)
	assert.Equal(t, "reset-flow", f.Reset.FlowID)
	assert.Equal(t, "user@example.com", f.Reset.Email)

	eff := f.SubmitReset(context.Background(), c, "123456", "new-password", begin(t, &f.Submission))
	assert.Equal(t, StepSignedIn, f.Step)
	assert.Equal(t, "reset-token", eff.SessionToken)
	assert.Equal(t, 1, c.activations)
}

func TestResetRejectedCodeIsRetained(t *testing.T) {
	c := &fakeClient{
		completeReset: func(handle identity.ResetHandle, code, newPassword string) (identity.SignInResult, error) {
			return identity.SignInResult{}, identity.ErrInvalidCode
		},
	}
	f := NewSignIn("", false)
	f.Step = StepResetCode
	f.Reset = identity.ResetHandle{FlowID: "reset-flow", Email: "user@example.com"}

	f.SubmitReset(context.Background(), c, "123456", "new-password", begin(t, &f.Submission))

	assert.Equal(t, StepResetCode, f.Step)
	assert.Equal(t, "123456", f.ResetCode, "the rejected code stays for correction")
	assert.NotEmpty(t, f.Notice)
}

func TestResetBackDiscardsCodeOnly(t *testing.T) {
	f := NewSignIn("", false)
	f.Step = StepResetCode
	f.Identifier = "user@example.com"
	f.ResetCode = "123456"

	f.BackToResetEmail()

	assert.Equal(t, StepResetEmail, f.Step)
	assert.Empty(t, f.ResetCode)
	assert.Equal(t, "user@example.com", f.Identifier, "the email survives the back edge")
}

func TestBackToCredentialsClearsSubFlowState(t *testing.T) {
	f := NewSignIn("", false)
	f.Step = StepSecondFactor
	f.SessionToken = "half"
	f.Notice = "bad code"

	f.BackToCredentials()

	assert.Equal(t, StepCredentials, f.Step)
	assert.Empty(t, f.SessionToken)
	assert.Empty(t, f.Notice)
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("123456"))
	assert.False(t, ValidCode("12345"))
	assert.False(t, ValidCode("1234567"))
	assert.False(t, ValidCode("12345a"))
	assert.False(t, ValidCode(""))
}
