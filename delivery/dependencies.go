package delivery

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"auth-portal/flow"
	"auth-portal/identity"
)

// AppDependencies defines the contract that the delivery layer (HTTP
// handlers) expects from the core application layer.
type AppDependencies interface {
	// Identity provides the provider capability client.
	Identity() identity.Client

	// Flows provides the flow-state store shared by the page handlers.
	Flows() *flow.Store

	// Gate is the access-gate middleware evaluated for every request.
	Gate(next http.Handler) http.Handler

	// SessionFromContext retrieves the session the gate resolved for this
	// request, if any.
	SessionFromContext(ctx context.Context) (identity.Session, bool)

	// SessionCookie names the cookie holding the provider session token.
	SessionCookie() string

	// Logger is the application logger.
	Logger() *zerolog.Logger
}
