// Package gate decides, once per incoming request, whether the request may
// pass through to its page or must be redirected. It owns no state: the
// route table is static configuration and the session is read fresh from the
// identity provider for every evaluation.
package gate

import (
	"net/url"
	"strings"

	"auth-portal/identity"
)

// Classification buckets a route for policy purposes.
type Classification int

const (
	// Public routes never redirect, whatever the session looks like.
	Public Classification = iota
	// Protected routes require an active, fully set up session.
	Protected
)

// Pattern matches either an exact path or, with a trailing "/*", the path
// and everything beneath it ("/sign-in/*" matches "/sign-in" too).
type Pattern string

func (p Pattern) Match(path string) bool {
	s := string(p)
	if prefix, ok := strings.CutSuffix(s, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == s
}

// PatternSet is an ordered list of patterns.
type PatternSet []Pattern

// NewPatternSet builds a set from raw pattern strings.
func NewPatternSet(raw []string) PatternSet {
	set := make(PatternSet, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			set = append(set, Pattern(r))
		}
	}
	return set
}

func (s PatternSet) Match(path string) bool {
	for _, p := range s {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Outcome is the gate's verdict for one request.
type Outcome struct {
	Allowed bool
	// Location is the redirect target when the request is not allowed.
	Location string
}

func allow() Outcome             { return Outcome{Allowed: true} }
func redirect(to string) Outcome { return Outcome{Location: to} }

// Policy is the ordered rule set. Org gating and pending-task gating are
// independently toggleable policy rules, not separate gate versions.
type Policy struct {
	// PublicRoutes pass through unconditionally.
	PublicRoutes PatternSet
	// SetupExemptRoutes stay reachable for an authenticated user who has
	// not finished organization setup (the setup pages themselves, account
	// management, profile).
	SetupExemptRoutes PatternSet

	SignInPath       string
	PendingTasksPath string
	CreateOrgPath    string

	OrgGating         bool
	PendingTaskGating bool
}

// Classify buckets the path. Classification happens before any session
// state is consulted.
func (p *Policy) Classify(path string) Classification {
	if p.PublicRoutes.Match(path) {
		return Public
	}
	return Protected
}

// Evaluate applies the rules in fixed order, first match wins:
//
//  1. pending session on a protected route (other than the task page)
//     redirects to the pending-task page
//  2. unauthenticated on a protected route redirects to sign-in,
//     preserving the requested path
//  3. public routes pass through
//  4. setup-exempt routes pass through for authenticated users
//  5. authenticated without an organization redirects to org creation
//     (when org gating is enabled)
//  6. everything else passes through
//
// Callers must fail closed: a session lookup error is an unauthenticated
// session, never a pass-through.
func (p *Policy) Evaluate(path string, sess identity.Session) Outcome {
	protected := p.Classify(path) == Protected

	if p.PendingTaskGating && sess.Status == identity.SessionPending && protected && path != p.PendingTasksPath {
		return redirect(p.PendingTasksPath)
	}
	if !sess.Authenticated && protected {
		return redirect(p.SignInPath + "?return_to=" + url.QueryEscape(path))
	}
	if !protected {
		return allow()
	}
	if p.SetupExemptRoutes.Match(path) {
		return allow()
	}
	if p.OrgGating && sess.OrganizationID == "" {
		return redirect(p.CreateOrgPath)
	}
	return allow()
}
