package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"

	"auth-portal/flow"
	"auth-portal/gate"
	"auth-portal/identity"
)

func TestMain(m *testing.M) {
	ParseAllTemplates("../templates")
	os.Exit(m.Run())
}

const testCookie = "portal_session"

type testContextKey string

// fakeDeps implements AppDependencies for handler tests. Session resolution
// is scripted: the cookie value is looked up in sessions.
type fakeDeps struct {
	client   identity.Client
	flows    *flow.Store
	policy   gate.Policy
	sessions map[string]identity.Session
	log      zerolog.Logger
}

func newFakeDeps(t *testing.T, client identity.Client) *fakeDeps {
	t.Helper()
	flows, err := flow.NewStore(time.Minute)
	require.NoError(t, err)
	return &fakeDeps{
		client: client,
		flows:  flows,
		policy: gate.Policy{
			PublicRoutes: gate.NewPatternSet([]string{
				"/sign-in/*", "/sign-up/*", "/sso-callback", "/sign-out", "/session-tasks", "/error", "/static/*",
			}),
			SetupExemptRoutes: gate.NewPatternSet([]string{
				"/create-organization/*", "/session-tasks", "/user/profile", "/account/*",
			}),
			SignInPath:        "/sign-in",
			PendingTasksPath:  "/session-tasks",
			CreateOrgPath:     "/create-organization",
			OrgGating:         true,
			PendingTaskGating: true,
		},
		sessions: map[string]identity.Session{},
		log:      zerolog.Nop(),
	}
}

func (d *fakeDeps) Identity() identity.Client { return d.client }
func (d *fakeDeps) Flows() *flow.Store        { return d.flows }
func (d *fakeDeps) SessionCookie() string     { return testCookie }
func (d *fakeDeps) Logger() *zerolog.Logger   { return &d.log }

var _ AppDependencies = (*fakeDeps)(nil)

func (d *fakeDeps) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess identity.Session
		if cookie, err := r.Cookie(testCookie); err == nil {
			sess = d.sessions[cookie.Value]
		}
		outcome := d.policy.Evaluate(r.URL.Path, sess)
		if !outcome.Allowed {
			http.Redirect(w, r, outcome.Location, http.StatusSeeOther)
			return
		}
		if sess.Authenticated {
			r = r.WithContext(context.WithValue(r.Context(), testContextKey("session"), sess))
		}
		next.ServeHTTP(w, r)
	})
}

func (d *fakeDeps) SessionFromContext(ctx context.Context) (identity.Session, bool) {
	sess, ok := ctx.Value(testContextKey("session")).(identity.Session)
	return sess, ok
}

// stubClient embeds the interface so tests only define the methods a route
// actually exercises; anything else panics loudly.
type stubClient struct {
	identity.Client
	signIn   func(identifier, password string) (identity.SignInResult, error)
	activate func(token string) (identity.Session, error)
	resolve  func(credential string) (identity.Session, error)
	logouts  int
}

func (s *stubClient) BeginSignIn(ctx context.Context, identifier, password string) (identity.SignInResult, error) {
	return s.signIn(identifier, password)
}

func (s *stubClient) ActivateSession(ctx context.Context, token string) (identity.Session, error) {
	if s.activate != nil {
		return s.activate(token)
	}
	return identity.Session{Authenticated: true, Status: identity.SessionActive}, nil
}

func (s *stubClient) ResolveSession(ctx context.Context, credential string) (identity.Session, error) {
	if s.resolve != nil {
		return s.resolve(credential)
	}
	return identity.Session{}, identity.ErrNoSession
}

func (s *stubClient) Logout(ctx context.Context, token string) error {
	s.logouts++
	return nil
}

// bodyContains asserts the rendered page mentions every given fragment.
func bodyContains(fragments ...string) func(*http.Response, *http.Request) error {
	return func(res *http.Response, _ *http.Request) error {
		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		for _, fragment := range fragments {
			if !strings.Contains(string(raw), fragment) {
				return fmt.Errorf("body does not contain %q", fragment)
			}
		}
		return nil
	}
}

func TestSignInPageIsPublic(t *testing.T) {
	deps := newFakeDeps(t, &stubClient{})

	apitest.New().
		Handler(NewRouter(deps)).
		Get("/sign-in").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Sign In")).
		End()
}

func TestProtectedPageRedirectsToSignIn(t *testing.T) {
	deps := newFakeDeps(t, &stubClient{})

	apitest.New().
		Handler(NewRouter(deps)).
		Get("/").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/sign-in?return_to=%2F").
		End()
}

func TestPendingSessionRoutedToTasks(t *testing.T) {
	deps := newFakeDeps(t, &stubClient{})
	deps.sessions["tok"] = identity.Session{Authenticated: true, Status: identity.SessionPending, UserID: "u1"}

	apitest.New().
		Handler(NewRouter(deps)).
		Get("/user/profile").
		Cookies(apitest.NewCookie(testCookie).Value("tok")).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/session-tasks").
		End()
}

func TestHomeRendersForActiveSession(t *testing.T) {
	deps := newFakeDeps(t, &stubClient{})
	deps.sessions["tok"] = identity.Session{
		Authenticated:    true,
		Status:           identity.SessionActive,
		UserID:           "u1",
		Email:            "ada@example.com",
		FirstName:        "Ada",
		OrganizationID:   "org-1",
		OrganizationName: "Analytical Engines",
	}

	apitest.New().
		Handler(NewRouter(deps)).
		Get("/").
		Cookies(apitest.NewCookie(testCookie).Value("tok")).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Ada", "Analytical Engines")).
		End()
}

func TestSessionWithoutOrgRedirectsToCreate(t *testing.T) {
	deps := newFakeDeps(t, &stubClient{})
	deps.sessions["tok"] = identity.Session{Authenticated: true, Status: identity.SessionActive, UserID: "u1"}

	apitest.New().
		Handler(NewRouter(deps)).
		Get("/").
		Cookies(apitest.NewCookie(testCookie).Value("tok")).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/create-organization").
		End()
}

func TestSignInSubmitSetsCookieAndRedirects(t *testing.T) {
	client := &stubClient{
		signIn: func(identifier, password string) (identity.SignInResult, error) {
			return identity.SignInResult{Status: identity.SignInComplete, SessionToken: "fresh-token"}, nil
		},
	}
	deps := newFakeDeps(t, client)
	f := flow.NewSignIn("", false)
	require.NoError(t, deps.flows.SaveSignIn(f))

	apitest.New().
		Handler(NewRouter(deps)).
		Post("/sign-in").
		FormData("flow", f.ID).
		FormData("identifier", "ada@example.com").
		FormData("password", "correct-horse").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		CookiePresent(testCookie).
		End()
}

func TestSignInSubmitRejectionReRenders(t *testing.T) {
	client := &stubClient{
		signIn: func(identifier, password string) (identity.SignInResult, error) {
			return identity.SignInResult{}, identity.ErrInvalidCredentials
		},
	}
	deps := newFakeDeps(t, client)
	f := flow.NewSignIn("", false)
	require.NoError(t, deps.flows.SaveSignIn(f))

	apitest.New().
		Handler(NewRouter(deps)).
		Post("/sign-in").
		FormData("flow", f.ID).
		FormData("identifier", "ada@example.com").
		FormData("password", "wrong").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("The email address or password is incorrect.")).
		End()
}

func TestExpiredFlowRestartsSignIn(t *testing.T) {
	deps := newFakeDeps(t, &stubClient{})

	apitest.New().
		Handler(NewRouter(deps)).
		Post("/sign-in").
		FormData("flow", "gone").
		FormData("identifier", "ada@example.com").
		FormData("password", "pw").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/sign-in").
		End()
}

func TestSignOutRevokesSessionAndClearsCookie(t *testing.T) {
	client := &stubClient{}
	deps := newFakeDeps(t, client)

	apitest.New().
		Handler(NewRouter(deps)).
		Get("/sign-out").
		Cookies(apitest.NewCookie(testCookie).Value("tok")).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/sign-in").
		End()

	require.Equal(t, 1, client.logouts, "the provider session is revoked, not just the cookie")
}

func TestProfileLookupFailurePreservesReturnTo(t *testing.T) {
	deps := newFakeDeps(t, &stubClient{})
	deps.sessions["tok"] = identity.Session{
		Authenticated:  true,
		Status:         identity.SessionActive,
		UserID:         "u1",
		OrganizationID: "org-1",
	}

	// The gate admits the request, but the handler's full provider lookup
	// fails; the sign-in redirect must carry the requested path.
	apitest.New().
		Handler(NewRouter(deps)).
		Get("/user/profile").
		Cookies(apitest.NewCookie(testCookie).Value("tok")).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/sign-in?return_to=%2Fuser%2Fprofile").
		End()
}
