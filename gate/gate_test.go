package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"auth-portal/identity"
)

func testPolicy() Policy {
	return Policy{
		PublicRoutes: NewPatternSet([]string{
			"/sign-in/*",
			"/sign-up/*",
			"/sso-callback",
			"/session-tasks",
			"/static/*",
		}),
		SetupExemptRoutes: NewPatternSet([]string{
			"/create-organization/*",
			"/session-tasks",
			"/user/profile",
			"/account/*",
		}),
		SignInPath:        "/sign-in",
		PendingTasksPath:  "/session-tasks",
		CreateOrgPath:     "/create-organization",
		OrgGating:         true,
		PendingTaskGating: true,
	}
}

func activeSession(orgID string) identity.Session {
	return identity.Session{
		Authenticated:  true,
		Status:         identity.SessionActive,
		UserID:         "user-1",
		OrganizationID: orgID,
	}
}

func pendingSession() identity.Session {
	return identity.Session{
		Authenticated: true,
		Status:        identity.SessionPending,
		UserID:        "user-1",
	}
}

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		pattern Pattern
		path    string
		want    bool
	}{
		{"/sign-in", "/sign-in", true},
		{"/sign-in", "/sign-in/reset", false},
		{"/sign-in/*", "/sign-in", true},
		{"/sign-in/*", "/sign-in/reset", true},
		{"/sign-in/*", "/sign-invalid", false},
		{"/account/*", "/account/manage-mfa/add", true},
		{"/", "/", true},
		{"/", "/anything", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.pattern.Match(tt.path), "pattern %q path %q", tt.pattern, tt.path)
	}
}

func TestEvaluateUnauthenticated(t *testing.T) {
	p := testPolicy()
	var none identity.Session

	tests := []struct {
		path         string
		wantAllowed  bool
		wantLocation string
	}{
		{"/sign-in", true, ""},
		{"/sign-in/reset", true, ""},
		{"/sign-up", true, ""},
		{"/sso-callback", true, ""},
		{"/static/app.css", true, ""},
		{"/", false, "/sign-in?return_to=%2F"},
		{"/user/profile", false, "/sign-in?return_to=%2Fuser%2Fprofile"},
		{"/account/manage-mfa", false, "/sign-in?return_to=%2Faccount%2Fmanage-mfa"},
	}
	for _, tt := range tests {
		out := p.Evaluate(tt.path, none)
		assert.Equal(t, tt.wantAllowed, out.Allowed, "path %q", tt.path)
		assert.Equal(t, tt.wantLocation, out.Location, "path %q", tt.path)
	}
}

func TestEvaluatePendingSessionPrecedesEverything(t *testing.T) {
	p := testPolicy()
	sess := pendingSession()

	for _, path := range []string{"/", "/user/profile", "/create-organization", "/account/manage-mfa"} {
		out := p.Evaluate(path, sess)
		assert.False(t, out.Allowed, "path %q", path)
		assert.Equal(t, "/session-tasks", out.Location, "path %q", path)
	}

	// The task page itself must stay reachable or the user is stuck.
	out := p.Evaluate("/session-tasks", sess)
	assert.True(t, out.Allowed)
}

func TestEvaluateOrgGating(t *testing.T) {
	p := testPolicy()
	sess := activeSession("")

	out := p.Evaluate("/", sess)
	assert.False(t, out.Allowed)
	assert.Equal(t, "/create-organization", out.Location)

	// Setup-exempt routes stay reachable before the organization exists.
	for _, path := range []string{"/create-organization", "/user/profile", "/account/manage-mfa", "/account/manage-mfa/add"} {
		out := p.Evaluate(path, sess)
		assert.True(t, out.Allowed, "path %q", path)
	}

	// With an organization everything opens up.
	out = p.Evaluate("/", activeSession("org-1"))
	assert.True(t, out.Allowed)
}

func TestEvaluateGatingToggles(t *testing.T) {
	p := testPolicy()
	p.OrgGating = false

	out := p.Evaluate("/", activeSession(""))
	assert.True(t, out.Allowed, "org gating off admits sessions without an organization")

	// The pending session carries an organization so the org rule cannot
	// interfere with what this toggle controls.
	p = testPolicy()
	p.PendingTaskGating = false
	pending := pendingSession()
	pending.OrganizationID = "org-1"
	out = p.Evaluate("/", pending)
	assert.True(t, out.Allowed, "pending-task gating off admits pending sessions")

	// Without an organization the org rule still applies on its own.
	out = p.Evaluate("/", pendingSession())
	assert.False(t, out.Allowed)
	assert.Equal(t, "/create-organization", out.Location)
}

func TestEvaluateFailClosedShape(t *testing.T) {
	// The caller maps resolution errors to the zero session; the zero
	// session must never reach a protected page.
	p := testPolicy()
	out := p.Evaluate("/user/profile", identity.Session{})
	assert.False(t, out.Allowed)
}

func TestClassify(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, Public, p.Classify("/sign-in"))
	assert.Equal(t, Public, p.Classify("/sign-up/verify"))
	assert.Equal(t, Protected, p.Classify("/"))
	assert.Equal(t, Protected, p.Classify("/create-organization"))
}
