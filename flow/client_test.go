package flow

import (
	"context"

	"auth-portal/identity"
)

// fakeClient implements identity.Client with per-call hooks and counters so
// tests can script provider behavior per transition.
type fakeClient struct {
	beginSignIn     func(identifier, password string) (identity.SignInResult, error)
	secondFactor    func(token, code string, strategy identity.SecondFactorStrategy) (identity.SignInResult, error)
	requestReset    func(identifier string) (identity.ResetHandle, error)
	completeReset   func(handle identity.ResetHandle, code, newPassword string) (identity.SignInResult, error)
	createAccount   func(account identity.NewAccount) (identity.AccountHandle, error)
	prepareVerify   func(handle identity.AccountHandle) (identity.AccountHandle, error)
	attemptVerify   func(handle identity.AccountHandle, code string) (identity.VerificationResult, error)
	createTOTP      func(token string) (identity.TOTPProvision, error)
	verifyTOTP      func(token, flowID, code string) error
	activateErr     error
	activations     int
	logouts         int
	beginCalls      int
	secondCalls     int
	createCalls     int
	prepareCalls    int
	totpVerifyCalls int
}

var _ identity.Client = (*fakeClient)(nil)

func (f *fakeClient) ResolveSession(ctx context.Context, credential string) (identity.Session, error) {
	return identity.Session{Authenticated: true, Status: identity.SessionActive}, nil
}

func (f *fakeClient) ActivateSession(ctx context.Context, sessionToken string) (identity.Session, error) {
	f.activations++
	if f.activateErr != nil {
		return identity.Session{}, f.activateErr
	}
	return identity.Session{Authenticated: true, Status: identity.SessionActive}, nil
}

func (f *fakeClient) Logout(ctx context.Context, sessionToken string) error {
	f.logouts++
	return nil
}

func (f *fakeClient) BeginSignIn(ctx context.Context, identifier, password string) (identity.SignInResult, error) {
	f.beginCalls++
	if f.beginSignIn == nil {
		return identity.SignInResult{Status: identity.SignInComplete, SessionToken: "token"}, nil
	}
	return f.beginSignIn(identifier, password)
}

func (f *fakeClient) AttemptSecondFactor(ctx context.Context, sessionToken, code string, strategy identity.SecondFactorStrategy) (identity.SignInResult, error) {
	f.secondCalls++
	if f.secondFactor == nil {
		return identity.SignInResult{Status: identity.SignInComplete, SessionToken: sessionToken}, nil
	}
	return f.secondFactor(sessionToken, code, strategy)
}

func (f *fakeClient) RequestPasswordResetCode(ctx context.Context, identifier string) (identity.ResetHandle, error) {
	if f.requestReset == nil {
		return identity.ResetHandle{FlowID: "reset-flow", Email: identifier}, nil
	}
	return f.requestReset(identifier)
}

func (f *fakeClient) CompletePasswordReset(ctx context.Context, handle identity.ResetHandle, code, newPassword string) (identity.SignInResult, error) {
	if f.completeReset == nil {
		return identity.SignInResult{Status: identity.SignInComplete, SessionToken: "reset-token"}, nil
	}
	return f.completeReset(handle, code, newPassword)
}

func (f *fakeClient) CreateAccount(ctx context.Context, account identity.NewAccount) (identity.AccountHandle, error) {
	f.createCalls++
	if f.createAccount == nil {
		return identity.AccountHandle{SessionToken: "signup-token", Email: account.Email}, nil
	}
	return f.createAccount(account)
}

func (f *fakeClient) PrepareEmailVerification(ctx context.Context, handle identity.AccountHandle) (identity.AccountHandle, error) {
	f.prepareCalls++
	if f.prepareVerify == nil {
		handle.VerificationFlowID = "verify-flow"
		return handle, nil
	}
	return f.prepareVerify(handle)
}

func (f *fakeClient) AttemptEmailVerification(ctx context.Context, handle identity.AccountHandle, code string) (identity.VerificationResult, error) {
	if f.attemptVerify == nil {
		return identity.VerificationResult{Complete: true}, nil
	}
	return f.attemptVerify(handle, code)
}

func (f *fakeClient) CreateTOTPSecret(ctx context.Context, sessionToken string) (identity.TOTPProvision, error) {
	if f.createTOTP == nil {
		return identity.TOTPProvision{FlowID: "settings-flow", Secret: "SECRET", URI: "otpauth://totp/x?secret=SECRET"}, nil
	}
	return f.createTOTP(sessionToken)
}

func (f *fakeClient) VerifyTOTP(ctx context.Context, sessionToken, flowID, code string) error {
	f.totpVerifyCalls++
	if f.verifyTOTP == nil {
		return nil
	}
	return f.verifyTOTP(sessionToken, flowID, code)
}

func (f *fakeClient) DisableTOTP(ctx context.Context, sessionToken string) error { return nil }

func (f *fakeClient) CreateBackupCodes(ctx context.Context, sessionToken string) ([]string, error) {
	return []string{"aaaa-bbbb", "cccc-dddd"}, nil
}

func (f *fakeClient) CreateOrganization(ctx context.Context, sessionToken, name string) (identity.Organization, error) {
	return identity.Organization{ID: "org-1", Name: name}, nil
}

func (f *fakeClient) SetActiveOrganization(ctx context.Context, sessionToken, organizationID string) error {
	return nil
}
