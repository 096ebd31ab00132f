package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession means the presented credential maps to no session.
	ErrNoSession = errors.New("no session for credential")
	// ErrInvalidCredentials is a provider rejection of identifier/password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode is a provider rejection of a one-time code.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrExpiredFlow means the provider-side conversation timed out and the
	// caller should start the flow over.
	ErrExpiredFlow = errors.New("flow expired")
	// ErrSessionRequired is the step-up signal: the session must be
	// re-verified before the sensitive action is allowed.
	ErrSessionRequired = errors.New("session re-verification required")
	// ErrProviderUnavailable covers transport failures and timeouts.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// ProviderError wraps a provider rejection together with the message the
// provider wants shown to the user.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Message)
	}
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UserMessage derives a user-displayable notice from any error returned by a
// Client. Provider rejections surface their own message; everything else
// collapses to a generic retryable notice so no internal detail leaks.
func UserMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "The email address or password is incorrect."
	case errors.Is(err, ErrInvalidCode):
		return "That code is invalid or has expired. Please try again."
	case errors.Is(err, ErrExpiredFlow):
		return "This session took too long. Please start over."
	case errors.Is(err, ErrSessionRequired):
		return "Please sign in again to confirm this change."
	default:
		return "Something went wrong. Please try again."
	}
}
