package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	ory "github.com/ory/client-go"
	"github.com/rs/zerolog"
)

// KratosConfig configures the Ory Kratos adapter.
type KratosConfig struct {
	// PublicURL is the Kratos public (self-service) API base URL.
	PublicURL string
	// AdminURL is the Kratos admin API base URL, used for identity
	// metadata (organization binding) and credential inspection.
	AdminURL string
	// Timeout bounds every provider call. Zero means 10s.
	Timeout time.Duration
	// TOTPIssuer is the issuer label embedded in provisioning URIs.
	TOTPIssuer string
}

// Kratos implements Client against an Ory Kratos deployment. Password
// checks, TOTP validation, backup codes and session issuance all happen on
// the Kratos side; this type only drives the self-service flows.
type Kratos struct {
	frontend *ory.APIClient
	admin    *ory.APIClient
	timeout  time.Duration
	issuer   string
	log      zerolog.Logger
}

var _ Client = (*Kratos)(nil)

// NewKratos builds the adapter. Both API clients share the configured
// timeout through per-call contexts rather than the HTTP client, so callers
// keep cancellation control.
func NewKratos(cfg KratosConfig, log zerolog.Logger) *Kratos {
	mk := func(baseURL string) *ory.APIClient {
		conf := ory.NewConfiguration()
		conf.Servers = ory.ServerConfigurations{{URL: baseURL}}
		return ory.NewAPIClient(conf)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	issuer := cfg.TOTPIssuer
	if issuer == "" {
		issuer = "auth-portal"
	}
	return &Kratos{
		frontend: mk(cfg.PublicURL),
		admin:    mk(cfg.AdminURL),
		timeout:  timeout,
		issuer:   issuer,
		log:      log.With().Str("component", "kratos").Logger(),
	}
}

func (k *Kratos) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, k.timeout)
}

// ResolveSession checks the opaque session token with Kratos.
func (k *Kratos) ResolveSession(ctx context.Context, credential string) (Session, error) {
	if credential == "" {
		return Session{}, ErrNoSession
	}
	ctx, cancel := k.bound(ctx)
	defer cancel()

	session, resp, err := k.frontend.FrontendAPI.ToSession(ctx).XSessionToken(credential).Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return Session{}, ErrNoSession
		}
		return Session{}, k.transportErr("to_session", err)
	}
	if session.Active == nil || !*session.Active {
		return Session{}, ErrNoSession
	}
	return k.sessionFromOry(session), nil
}

// ActivateSession validates a freshly issued token and returns the session
// state it represents.
func (k *Kratos) ActivateSession(ctx context.Context, sessionToken string) (Session, error) {
	return k.ResolveSession(ctx, sessionToken)
}

// Logout revokes the session on the provider side so the token stops
// working immediately rather than at natural expiry.
func (k *Kratos) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	ctx, cancel := k.bound(ctx)
	defer cancel()

	body := ory.PerformNativeLogoutBody{SessionToken: sessionToken}
	resp, err := k.frontend.FrontendAPI.PerformNativeLogout(ctx).PerformNativeLogoutBody(body).Execute()
	if err != nil {
		// The session is already gone; revocation has nothing left to do.
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil
		}
		return k.transportErr("logout", err)
	}
	return nil
}

// BeginSignIn runs the password first factor. When the identity also has a
// TOTP credential enrolled, the half-authenticated token is returned with
// SignInNeedsSecondFactor and must be upgraded via AttemptSecondFactor.
func (k *Kratos) BeginSignIn(ctx context.Context, identifier, password string) (SignInResult, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, _, err := k.frontend.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return SignInResult{}, k.transportErr("create_login_flow", err)
	}

	body := ory.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&ory.UpdateLoginFlowWithPasswordMethod{
		Method:     "password",
		Identifier: identifier,
		Password:   password,
	})
	result, resp, err := k.frontend.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(body).
		Execute()
	if err != nil {
		return SignInResult{}, k.signInErr(resp, err)
	}
	if result.SessionToken == nil {
		return SignInResult{}, &ProviderError{Err: ErrProviderUnavailable, Message: "The sign-in could not be completed."}
	}

	needsSecond, err := k.hasSecondFactor(ctx, result.Session.Identity.Id)
	if err != nil {
		// Fail toward requiring the second factor rather than skipping it.
		k.log.Warn().Err(err).Msg("second-factor lookup failed, requiring second factor")
		needsSecond = true
	}
	if needsSecond {
		return SignInResult{Status: SignInNeedsSecondFactor, SessionToken: *result.SessionToken}, nil
	}
	return SignInResult{Status: SignInComplete, SessionToken: *result.SessionToken}, nil
}

// AttemptSecondFactor upgrades a half-authenticated session to aal2 using a
// TOTP code or a one-time backup code.
func (k *Kratos) AttemptSecondFactor(ctx context.Context, sessionToken, code string, strategy SecondFactorStrategy) (SignInResult, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, _, err := k.frontend.FrontendAPI.CreateNativeLoginFlow(ctx).
		XSessionToken(sessionToken).
		Aal("aal2").
		Execute()
	if err != nil {
		return SignInResult{}, k.transportErr("create_aal2_flow", err)
	}

	var body ory.UpdateLoginFlowBody
	switch strategy {
	case StrategyBackupCode:
		body = ory.UpdateLoginFlowWithLookupSecretMethodAsUpdateLoginFlowBody(&ory.UpdateLoginFlowWithLookupSecretMethod{
			Method:       "lookup_secret",
			LookupSecret: code,
		})
	default:
		body = ory.UpdateLoginFlowWithTotpMethodAsUpdateLoginFlowBody(&ory.UpdateLoginFlowWithTotpMethod{
			Method:   "totp",
			TotpCode: code,
		})
	}

	_, resp, err := k.frontend.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.Id).
		XSessionToken(sessionToken).
		UpdateLoginFlowBody(body).
		Execute()
	if err != nil {
		if mapped := k.codeRejection(resp, err); mapped != nil {
			return SignInResult{}, mapped
		}
		return SignInResult{}, k.transportErr("update_aal2_flow", err)
	}
	return SignInResult{Status: SignInComplete, SessionToken: sessionToken}, nil
}

// RequestPasswordResetCode starts a recovery flow; Kratos emails the code.
func (k *Kratos) RequestPasswordResetCode(ctx context.Context, identifier string) (ResetHandle, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, _, err := k.frontend.FrontendAPI.CreateNativeRecoveryFlow(ctx).Execute()
	if err != nil {
		return ResetHandle{}, k.transportErr("create_recovery_flow", err)
	}

	body := ory.UpdateRecoveryFlowWithCodeMethodAsUpdateRecoveryFlowBody(&ory.UpdateRecoveryFlowWithCodeMethod{
		Method: "code",
		Email:  &identifier,
	})
	updated, resp, err := k.frontend.FrontendAPI.UpdateRecoveryFlow(ctx).
		Flow(flow.Id).
		UpdateRecoveryFlowBody(body).
		Execute()
	if err != nil {
		if mapped := k.codeRejection(resp, err); mapped != nil {
			return ResetHandle{}, mapped
		}
		return ResetHandle{}, k.transportErr("update_recovery_flow", err)
	}
	return ResetHandle{FlowID: updated.Id, Email: identifier}, nil
}

// CompletePasswordReset submits the emailed code, then sets the new password
// through a privileged settings flow on the recovered session.
func (k *Kratos) CompletePasswordReset(ctx context.Context, handle ResetHandle, code, newPassword string) (SignInResult, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	body := ory.UpdateRecoveryFlowWithCodeMethodAsUpdateRecoveryFlowBody(&ory.UpdateRecoveryFlowWithCodeMethod{
		Method: "code",
		Code:   &code,
	})
	updated, resp, err := k.frontend.FrontendAPI.UpdateRecoveryFlow(ctx).
		Flow(handle.FlowID).
		UpdateRecoveryFlowBody(body).
		Execute()

	token := ""
	if err != nil {
		// Recovery success surfaces as a "browser location change" error in
		// some Kratos versions; the session token still arrives via
		// continue_with on the flow model carried in the error body.
		if mapped := k.codeRejection(resp, err); mapped != nil {
			return SignInResult{}, mapped
		}
		return SignInResult{}, k.transportErr("complete_recovery_flow", err)
	}
	token = continueWithToken(updated.ContinueWith)
	if token == "" {
		return SignInResult{}, &ProviderError{Err: ErrInvalidCode, Message: "The recovery code was not accepted."}
	}

	// The recovered session is privileged for a short window; use it to set
	// the replacement password.
	settings, _, err := k.frontend.FrontendAPI.CreateNativeSettingsFlow(ctx).XSessionToken(token).Execute()
	if err != nil {
		return SignInResult{}, k.transportErr("create_settings_flow", err)
	}
	pwBody := ory.UpdateSettingsFlowWithPasswordMethodAsUpdateSettingsFlowBody(&ory.UpdateSettingsFlowWithPasswordMethod{
		Method:   "password",
		Password: newPassword,
	})
	_, resp, err = k.frontend.FrontendAPI.UpdateSettingsFlow(ctx).
		Flow(settings.Id).
		XSessionToken(token).
		UpdateSettingsFlowBody(pwBody).
		Execute()
	if err != nil {
		if msg := validationMessage(err); msg != "" {
			return SignInResult{}, &ProviderError{Err: ErrInvalidCredentials, Message: msg}
		}
		return SignInResult{}, k.transportErr("update_password", err)
	}
	return SignInResult{Status: SignInComplete, SessionToken: token}, nil
}

// CreateAccount registers the identity with the password method and the
// email/name trait schema.
func (k *Kratos) CreateAccount(ctx context.Context, account NewAccount) (AccountHandle, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, _, err := k.frontend.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if err != nil {
		return AccountHandle{}, k.transportErr("create_registration_flow", err)
	}

	body := ory.UpdateRegistrationFlowWithPasswordMethodAsUpdateRegistrationFlowBody(&ory.UpdateRegistrationFlowWithPasswordMethod{
		Method:   "password",
		Password: account.Password,
		Traits: map[string]interface{}{
			"email": account.Email,
			"name": map[string]string{
				"first": account.FirstName,
				"last":  account.LastName,
			},
		},
	})
	result, resp, err := k.frontend.FrontendAPI.UpdateRegistrationFlow(ctx).
		Flow(flow.Id).
		UpdateRegistrationFlowBody(body).
		Execute()
	if err != nil {
		if msg := validationMessage(err); msg != "" {
			return AccountHandle{}, &ProviderError{Err: ErrInvalidCredentials, Message: msg}
		}
		if resp != nil && resp.StatusCode == http.StatusGone {
			return AccountHandle{}, ErrExpiredFlow
		}
		return AccountHandle{}, k.transportErr("update_registration_flow", err)
	}

	handle := AccountHandle{Email: account.Email}
	if result.SessionToken != nil {
		handle.SessionToken = *result.SessionToken
	}
	return handle, nil
}

// PrepareEmailVerification starts (or restarts, for resend) a verification
// flow with the email-code strategy. The returned handle carries the flow ID
// the code submission must target.
func (k *Kratos) PrepareEmailVerification(ctx context.Context, handle AccountHandle) (AccountHandle, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, _, err := k.frontend.FrontendAPI.CreateNativeVerificationFlow(ctx).Execute()
	if err != nil {
		return handle, k.transportErr("create_verification_flow", err)
	}
	body := ory.UpdateVerificationFlowWithCodeMethodAsUpdateVerificationFlowBody(&ory.UpdateVerificationFlowWithCodeMethod{
		Method: "code",
		Email:  &handle.Email,
	})
	updated, resp, err := k.frontend.FrontendAPI.UpdateVerificationFlow(ctx).
		Flow(flow.Id).
		UpdateVerificationFlowBody(body).
		Execute()
	if err != nil {
		if mapped := k.codeRejection(resp, err); mapped != nil {
			return handle, mapped
		}
		return handle, k.transportErr("update_verification_flow", err)
	}
	handle.VerificationFlowID = updated.Id
	return handle, nil
}

// AttemptEmailVerification submits the emailed code.
func (k *Kratos) AttemptEmailVerification(ctx context.Context, handle AccountHandle, code string) (VerificationResult, error) {
	if handle.VerificationFlowID == "" {
		return VerificationResult{}, ErrExpiredFlow
	}
	ctx, cancel := k.bound(ctx)
	defer cancel()

	body := ory.UpdateVerificationFlowWithCodeMethodAsUpdateVerificationFlowBody(&ory.UpdateVerificationFlowWithCodeMethod{
		Method: "code",
		Code:   &code,
	})
	updated, resp, err := k.frontend.FrontendAPI.UpdateVerificationFlow(ctx).
		Flow(handle.VerificationFlowID).
		UpdateVerificationFlowBody(body).
		Execute()
	if err != nil {
		if mapped := k.codeRejection(resp, err); mapped != nil {
			return VerificationResult{}, mapped
		}
		return VerificationResult{}, k.transportErr("attempt_verification", err)
	}
	state, _ := updated.GetState().(string)
	return VerificationResult{Complete: state == "passed_challenge"}, nil
}

// CreateTOTPSecret opens a settings flow and extracts the provisioned secret
// and QR from its UI nodes. Kratos refuses with a refresh requirement when
// the session is too old, which maps to ErrSessionRequired.
func (k *Kratos) CreateTOTPSecret(ctx context.Context, sessionToken string) (TOTPProvision, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, resp, err := k.frontend.FrontendAPI.CreateNativeSettingsFlow(ctx).XSessionToken(sessionToken).Execute()
	if err != nil {
		return TOTPProvision{}, k.settingsErr(resp, err)
	}

	prov := TOTPProvision{FlowID: flow.Id}
	for _, node := range flow.Ui.Nodes {
		if node.Group != "totp" {
			continue
		}
		if img := node.Attributes.UiNodeImageAttributes; img != nil && img.Id == "totp_qr" {
			prov.QRSrc = img.Src
		}
		if txt := node.Attributes.UiNodeTextAttributes; txt != nil && txt.Id == "totp_secret_key" {
			prov.Secret = txt.Text.Text
		}
	}
	if prov.Secret == "" {
		return TOTPProvision{}, &ProviderError{Err: ErrProviderUnavailable, Message: "The authenticator secret could not be provisioned."}
	}
	prov.URI = k.otpauthURI(prov.Secret)
	return prov, nil
}

// VerifyTOTP confirms the provisioned secret with a 6-digit code, enabling
// TOTP for the identity.
func (k *Kratos) VerifyTOTP(ctx context.Context, sessionToken, flowID, code string) error {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	body := ory.UpdateSettingsFlowWithTotpMethodAsUpdateSettingsFlowBody(&ory.UpdateSettingsFlowWithTotpMethod{
		Method:   "totp",
		TotpCode: &code,
	})
	_, resp, err := k.frontend.FrontendAPI.UpdateSettingsFlow(ctx).
		Flow(flowID).
		XSessionToken(sessionToken).
		UpdateSettingsFlowBody(body).
		Execute()
	if err != nil {
		if mapped := k.codeRejection(resp, err); mapped != nil {
			return mapped
		}
		return k.settingsErr(resp, err)
	}
	return nil
}

// DisableTOTP unlinks the authenticator credential. Step-up guarded by the
// provider in the same way as CreateTOTPSecret.
func (k *Kratos) DisableTOTP(ctx context.Context, sessionToken string) error {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, resp, err := k.frontend.FrontendAPI.CreateNativeSettingsFlow(ctx).XSessionToken(sessionToken).Execute()
	if err != nil {
		return k.settingsErr(resp, err)
	}
	unlink := true
	body := ory.UpdateSettingsFlowWithTotpMethodAsUpdateSettingsFlowBody(&ory.UpdateSettingsFlowWithTotpMethod{
		Method:     "totp",
		TotpUnlink: &unlink,
	})
	_, resp, err = k.frontend.FrontendAPI.UpdateSettingsFlow(ctx).
		Flow(flow.Id).
		XSessionToken(sessionToken).
		UpdateSettingsFlowBody(body).
		Execute()
	if err != nil {
		return k.settingsErr(resp, err)
	}
	return nil
}

// CreateBackupCodes regenerates and confirms one-time lookup secrets,
// returning them for display. Previously issued codes stop working.
func (k *Kratos) CreateBackupCodes(ctx context.Context, sessionToken string) ([]string, error) {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	flow, resp, err := k.frontend.FrontendAPI.CreateNativeSettingsFlow(ctx).XSessionToken(sessionToken).Execute()
	if err != nil {
		return nil, k.settingsErr(resp, err)
	}

	regenerate := true
	body := ory.UpdateSettingsFlowWithLookupMethodAsUpdateSettingsFlowBody(&ory.UpdateSettingsFlowWithLookupMethod{
		Method:                 "lookup_secret",
		LookupSecretRegenerate: &regenerate,
	})
	updated, resp, err := k.frontend.FrontendAPI.UpdateSettingsFlow(ctx).
		Flow(flow.Id).
		XSessionToken(sessionToken).
		UpdateSettingsFlowBody(body).
		Execute()
	if err != nil {
		return nil, k.settingsErr(resp, err)
	}

	codes := lookupCodes(updated.Ui.Nodes)
	if len(codes) == 0 {
		return nil, &ProviderError{Err: ErrProviderUnavailable, Message: "Backup codes could not be generated."}
	}

	confirm := true
	body = ory.UpdateSettingsFlowWithLookupMethodAsUpdateSettingsFlowBody(&ory.UpdateSettingsFlowWithLookupMethod{
		Method:              "lookup_secret",
		LookupSecretConfirm: &confirm,
	})
	_, resp, err = k.frontend.FrontendAPI.UpdateSettingsFlow(ctx).
		Flow(updated.Id).
		XSessionToken(sessionToken).
		UpdateSettingsFlowBody(body).
		Execute()
	if err != nil {
		return nil, k.settingsErr(resp, err)
	}
	return codes, nil
}

// CreateOrganization mints an organization handle and binds it to the
// caller's identity metadata. Kratos does not own organization records, so
// membership lives in public identity metadata, the same slot the identity
// schema already uses for tenant hints.
func (k *Kratos) CreateOrganization(ctx context.Context, sessionToken, name string) (Organization, error) {
	sess, err := k.ResolveSession(ctx, sessionToken)
	if err != nil {
		return Organization{}, err
	}
	org := Organization{ID: uuid.NewString(), Name: name}
	if err := k.patchMetadata(ctx, sess.UserID, map[string]interface{}{
		"organizationId":   org.ID,
		"organizationName": org.Name,
		"pendingTask":      false,
	}); err != nil {
		return Organization{}, err
	}
	return org, nil
}

// SetActiveOrganization points the identity's active organization at an
// existing organization ID.
func (k *Kratos) SetActiveOrganization(ctx context.Context, sessionToken, organizationID string) error {
	sess, err := k.ResolveSession(ctx, sessionToken)
	if err != nil {
		return err
	}
	return k.patchMetadata(ctx, sess.UserID, map[string]interface{}{
		"organizationId": organizationID,
		"pendingTask":    false,
	})
}

// --- internals ---

func (k *Kratos) hasSecondFactor(ctx context.Context, identityID string) (bool, error) {
	id, _, err := k.admin.IdentityAPI.GetIdentity(ctx, identityID).
		IncludeCredential([]string{"totp"}).
		Execute()
	if err != nil {
		return false, fmt.Errorf("get identity: %w", err)
	}
	if id.Credentials == nil {
		return false, nil
	}
	_, ok := (*id.Credentials)["totp"]
	return ok, nil
}

func (k *Kratos) patchMetadata(ctx context.Context, identityID string, patch map[string]interface{}) error {
	ctx, cancel := k.bound(ctx)
	defer cancel()

	cur, _, err := k.admin.IdentityAPI.GetIdentity(ctx, identityID).Execute()
	if err != nil {
		return k.transportErr("get_identity", err)
	}

	body := updateIdentityBody(cur, patch)
	_, _, err = k.admin.IdentityAPI.UpdateIdentity(ctx, identityID).UpdateIdentityBody(body).Execute()
	if err != nil {
		return k.transportErr("update_identity", err)
	}
	return nil
}

// updateIdentityBody rebuilds the full update payload from the current
// identity with the metadata patch merged in. The admin update API replaces
// the identity wholesale, so traits, state and untouched metadata keys must
// be carried over.
func updateIdentityBody(cur *ory.Identity, patch map[string]interface{}) ory.UpdateIdentityBody {
	meta := map[string]interface{}{}
	for key, val := range cur.MetadataPublic {
		meta[key] = val
	}
	for key, val := range patch {
		meta[key] = val
	}

	traits, _ := cur.Traits.(map[string]interface{})
	state := "active"
	if cur.State != nil {
		state = *cur.State
	}
	return ory.UpdateIdentityBody{
		SchemaId:       cur.SchemaId,
		Traits:         traits,
		State:          state,
		MetadataPublic: meta,
	}
}

func (k *Kratos) sessionFromOry(s *ory.Session) Session {
	sess := Session{Authenticated: true, Status: SessionActive}
	if s.Identity == nil {
		return sess
	}
	sess.UserID = s.Identity.Id

	if traits, ok := s.Identity.Traits.(map[string]interface{}); ok {
		if email, ok := traits["email"].(string); ok {
			sess.Email = email
		}
		if name, ok := traits["name"].(map[string]interface{}); ok {
			sess.FirstName, _ = name["first"].(string)
			sess.LastName, _ = name["last"].(string)
		}
	}
	if orgID, ok := s.Identity.MetadataPublic["organizationId"].(string); ok {
		sess.OrganizationID = orgID
	}
	if orgName, ok := s.Identity.MetadataPublic["organizationName"].(string); ok {
		sess.OrganizationName = orgName
	}
	if pending, ok := s.Identity.MetadataPublic["pendingTask"].(bool); ok && pending {
		sess.Status = SessionPending
	}
	for _, method := range s.AuthenticationMethods {
		if method.Method != nil && (*method.Method == "totp" || *method.Method == "lookup_secret") {
			sess.TOTPEnabled = true
		}
	}
	if creds := s.Identity.Credentials; creds != nil {
		if _, ok := (*creds)["totp"]; ok {
			sess.TOTPEnabled = true
		}
		if _, ok := (*creds)["lookup_secret"]; ok {
			sess.BackupCodesEnabled = true
		}
	}
	return sess
}

func (k *Kratos) otpauthURI(secret string) string {
	label := url.PathEscape(k.issuer)
	return fmt.Sprintf("otpauth://totp/%s?secret=%s&issuer=%s", label, secret, url.QueryEscape(k.issuer))
}

// signInErr maps an UpdateLoginFlow error. Validation rejections (wrong
// password, unknown identifier) come back as a 400 with a LoginFlow model
// carrying UI messages; everything else is treated as transport failure.
func (k *Kratos) signInErr(resp *http.Response, err error) error {
	if msg := validationMessage(err); msg != "" {
		return &ProviderError{Err: ErrInvalidCredentials, Message: msg}
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return ErrInvalidCredentials
		case http.StatusGone:
			return ErrExpiredFlow
		}
	}
	return k.transportErr("sign_in", err)
}

// codeRejection maps provider rejections of one-time codes; returns nil when
// the error is not a code rejection.
func (k *Kratos) codeRejection(resp *http.Response, err error) error {
	if msg := validationMessage(err); msg != "" {
		return &ProviderError{Err: ErrInvalidCode, Message: msg}
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusBadRequest:
			return ErrInvalidCode
		case http.StatusGone:
			return ErrExpiredFlow
		}
	}
	return nil
}

// settingsErr maps settings-flow errors, in particular the 403 step-up
// signal Kratos raises when the session needs re-verification.
func (k *Kratos) settingsErr(resp *http.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusForbidden:
			return ErrSessionRequired
		case http.StatusUnauthorized:
			return ErrNoSession
		case http.StatusGone:
			return ErrExpiredFlow
		}
	}
	if msg := validationMessage(err); msg != "" {
		return &ProviderError{Err: ErrInvalidCode, Message: msg}
	}
	return k.transportErr("settings", err)
}

func (k *Kratos) transportErr(op string, err error) error {
	k.log.Error().Err(err).Str("op", op).Msg("provider call failed")
	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, op, err)
}

// validationMessage digs the first error-level UI message out of a flow
// model embedded in a GenericOpenAPIError. Empty when the error carries no
// flow model (network failures, expired flows and the like).
func validationMessage(err error) string {
	var generic *ory.GenericOpenAPIError
	if !errors.As(err, &generic) {
		return ""
	}
	switch model := generic.Model().(type) {
	case ory.LoginFlow:
		return uiErrorMessage(model.Ui)
	case *ory.LoginFlow:
		return uiErrorMessage(model.Ui)
	case ory.RegistrationFlow:
		return uiErrorMessage(model.Ui)
	case *ory.RegistrationFlow:
		return uiErrorMessage(model.Ui)
	case ory.RecoveryFlow:
		return uiErrorMessage(model.Ui)
	case *ory.RecoveryFlow:
		return uiErrorMessage(model.Ui)
	case ory.VerificationFlow:
		return uiErrorMessage(model.Ui)
	case *ory.VerificationFlow:
		return uiErrorMessage(model.Ui)
	case ory.SettingsFlow:
		return uiErrorMessage(model.Ui)
	case *ory.SettingsFlow:
		return uiErrorMessage(model.Ui)
	case ory.ErrorGeneric:
		return model.Error.GetMessage()
	case *ory.ErrorGeneric:
		return model.Error.GetMessage()
	}
	return ""
}

func uiErrorMessage(ui ory.UiContainer) string {
	for _, msg := range ui.Messages {
		if msg.Type == "error" {
			return msg.Text
		}
	}
	for _, node := range ui.Nodes {
		for _, msg := range node.Messages {
			if msg.Type == "error" {
				return msg.Text
			}
		}
	}
	return ""
}

// continueWithToken pulls a session token out of the continue_with actions
// some flows return on success.
func continueWithToken(items []ory.ContinueWith) string {
	for _, item := range items {
		if item.ContinueWithSetOrySessionToken != nil {
			return item.ContinueWithSetOrySessionToken.OrySessionToken
		}
	}
	return ""
}

// lookupCodes extracts the regenerated backup codes from the settings-flow
// UI. Kratos exposes them as a text node whose context carries the secrets;
// older versions put them space-separated into the node text.
func lookupCodes(nodes []ory.UiNode) []string {
	for _, node := range nodes {
		txt := node.Attributes.UiNodeTextAttributes
		if txt == nil || txt.Id != "lookup_secret_codes" {
			continue
		}
		if secrets, ok := txt.Text.Context["secrets"].([]interface{}); ok {
			var codes []string
			for _, raw := range secrets {
				if entry, ok := raw.(map[string]interface{}); ok {
					if code, ok := entry["text"].(string); ok && code != "" {
						codes = append(codes, code)
					}
				}
			}
			if len(codes) > 0 {
				return codes
			}
		}
		if fields := strings.Fields(txt.Text.Text); len(fields) > 0 {
			return fields
		}
	}
	return nil
}
