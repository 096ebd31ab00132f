// Package identity defines the capability interface through which the portal
// talks to the hosted identity provider. Credential verification, session
// issuance, TOTP secrets, backup codes and organization membership all live
// on the provider side; this package only names the operations and the shapes
// of their results. Handlers and flow controllers depend on the Client
// interface, never on a concrete SDK, so everything stays mockable in tests.
package identity

import "context"

// SessionStatus classifies the caller's session as seen by the provider.
type SessionStatus int

const (
	// SessionNone means no session exists for the presented credential.
	SessionNone SessionStatus = iota
	// SessionActive is a fully established session.
	SessionActive
	// SessionPending is authenticated but blocked on an outstanding task
	// (e.g. choosing an organization) before full access is granted.
	SessionPending
)

func (s SessionStatus) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionPending:
		return "pending"
	default:
		return "none"
	}
}

// Session is the read-only view of provider session state used by the access
// gate and page handlers. It is resolved fresh on every request.
type Session struct {
	Authenticated    bool
	Status           SessionStatus
	UserID           string
	OrganizationID   string
	OrganizationName string
	Email            string
	FirstName        string
	LastName         string

	// TOTPEnabled and BackupCodesEnabled are only populated by a full
	// provider lookup, not by the local token fast path.
	TOTPEnabled        bool
	BackupCodesEnabled bool
}

// SignInStatus is the outcome of a first- or second-factor attempt.
type SignInStatus int

const (
	SignInComplete SignInStatus = iota
	SignInNeedsSecondFactor
)

// SecondFactorStrategy selects which second factor a code belongs to.
type SecondFactorStrategy int

const (
	StrategyTOTP SecondFactorStrategy = iota
	StrategyBackupCode
)

func (s SecondFactorStrategy) String() string {
	if s == StrategyBackupCode {
		return "lookup_secret"
	}
	return "totp"
}

// SignInResult carries the provider's answer to a sign-in step. SessionToken
// is set once the provider has issued a session; for NeedsSecondFactor it is
// the half-authenticated token the second-factor attempt must present.
type SignInResult struct {
	Status       SignInStatus
	SessionToken string
}

// ResetHandle identifies an in-progress password-reset conversation with the
// provider. Opaque to callers; threaded from the request step to completion.
type ResetHandle struct {
	FlowID string `json:"flow_id"`
	Email  string `json:"email"`
}

// NewAccount is the registration input.
type NewAccount struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AccountHandle identifies a freshly created, not yet verified account.
type AccountHandle struct {
	SessionToken       string `json:"session_token"`
	Email              string `json:"email"`
	VerificationFlowID string `json:"verification_flow_id"`
}

// VerificationResult reports an email-verification attempt.
type VerificationResult struct {
	Complete bool
}

// TOTPProvision is the secret/URI pair returned when enrollment starts.
// FlowID ties the later verification call to this provisioned secret.
type TOTPProvision struct {
	FlowID string `json:"flow_id"`
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	// QRSrc is a provider-rendered QR image (data URL) when available.
	QRSrc string `json:"qr_src"`
}

// Organization is a provider-held organization handle.
type Organization struct {
	ID   string
	Name string
}

// SessionResolver is the narrow capability the access gate needs.
type SessionResolver interface {
	// ResolveSession maps a session credential (cookie value or bearer
	// token) to session state. An unknown or expired credential returns
	// ErrNoSession; transport failures return ErrProviderUnavailable.
	ResolveSession(ctx context.Context, credential string) (Session, error)
}

// Client is the full provider capability surface consumed by the portal.
type Client interface {
	SessionResolver

	BeginSignIn(ctx context.Context, identifier, password string) (SignInResult, error)
	AttemptSecondFactor(ctx context.Context, sessionToken, code string, strategy SecondFactorStrategy) (SignInResult, error)

	RequestPasswordResetCode(ctx context.Context, identifier string) (ResetHandle, error)
	CompletePasswordReset(ctx context.Context, handle ResetHandle, code, newPassword string) (SignInResult, error)

	CreateAccount(ctx context.Context, account NewAccount) (AccountHandle, error)
	PrepareEmailVerification(ctx context.Context, handle AccountHandle) (AccountHandle, error)
	AttemptEmailVerification(ctx context.Context, handle AccountHandle, code string) (VerificationResult, error)

	// ActivateSession validates a provider-issued token and returns the
	// session it represents. The delivery layer is responsible for binding
	// the token to the browser (cookie).
	ActivateSession(ctx context.Context, sessionToken string) (Session, error)

	// Logout revokes the provider session behind the token. An already
	// expired or unknown token is not an error.
	Logout(ctx context.Context, sessionToken string) error

	// CreateTOTPSecret, DisableTOTP and CreateBackupCodes are step-up
	// guarded on the provider side: they fail with ErrSessionRequired when
	// the session is too old for a sensitive change.
	CreateTOTPSecret(ctx context.Context, sessionToken string) (TOTPProvision, error)
	VerifyTOTP(ctx context.Context, sessionToken, flowID, code string) error
	DisableTOTP(ctx context.Context, sessionToken string) error
	CreateBackupCodes(ctx context.Context, sessionToken string) ([]string, error)

	CreateOrganization(ctx context.Context, sessionToken, name string) (Organization, error)
	SetActiveOrganization(ctx context.Context, sessionToken, organizationID string) error
}

// ResolverFunc adapts a plain function to a SessionResolver.
type ResolverFunc func(ctx context.Context, credential string) (Session, error)

func (f ResolverFunc) ResolveSession(ctx context.Context, credential string) (Session, error) {
	return f(ctx, credential)
}

// ChainResolver tries each resolver in order and returns the first session
// that resolves. A resolver that cannot handle the credential shape should
// return ErrNoSession so the next one gets a chance.
type ChainResolver []SessionResolver

func (c ChainResolver) ResolveSession(ctx context.Context, credential string) (Session, error) {
	var last error
	for _, r := range c {
		sess, err := r.ResolveSession(ctx, credential)
		if err == nil {
			return sess, nil
		}
		last = err
	}
	if last == nil {
		last = ErrNoSession
	}
	return Session{}, last
}
