// Package flow holds the per-page flow controllers: small state machines
// that sequence the user-facing steps of sign-in, sign-up and MFA enrollment
// and call out to the identity provider at each transition.
//
// A controller instance lives for the duration of one page's flow. In a
// server-rendered app that flow spans several requests, so controllers are
// serializable and parked in a TTL'd Store between requests, keyed by a flow
// ID carried in the form. An expired or missing entry simply starts the flow
// over, which is also what navigating away and back does.
package flow

import (
	"errors"
	"strings"
)

var (
	// ErrSubmitInFlight rejects a submission while another one from the
	// same controller is still outstanding.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrNotFound means the flow ID maps to no stored controller (expired,
	// never created, or evicted).
	ErrNotFound = errors.New("flow not found")
)

// Effect tells the delivery layer what to do after a transition settled.
// The zero Effect means re-render the current step.
type Effect struct {
	// Redirect navigates the browser when non-empty.
	Redirect string
	// SessionToken, when non-empty, must be bound to the browser (session
	// cookie) before redirecting.
	SessionToken string
}

// Submission is the per-controller concurrency guard. At most one
// submission may be in flight; Begin hands out a sequence number and only
// the settle carrying the current sequence is applied, so a late response
// from an abandoned submission can never overwrite newer state.
type Submission struct {
	InFlight bool   `json:"in_flight"`
	Seq      uint64 `json:"seq"`
}

// Begin claims the in-flight slot. The returned sequence must be passed to
// the transition that settles it.
func (s *Submission) Begin() (uint64, error) {
	if s.InFlight {
		return 0, ErrSubmitInFlight
	}
	s.InFlight = true
	s.Seq++
	return s.Seq, nil
}

// settle releases the slot if seq is still current. A stale seq reports
// false and the caller must drop its result.
func (s *Submission) settle(seq uint64) bool {
	if seq != s.Seq {
		return false
	}
	s.InFlight = false
	return true
}

// Abandon force-releases the slot, bumping the sequence so any in-flight
// settle becomes stale. Used when the user backs out of a step.
func (s *Submission) Abandon() {
	s.InFlight = false
	s.Seq++
}

const minPasswordLen = 8

// ValidCode reports whether s is exactly six ASCII digits. One-time-code
// submissions are blocked client- and server-side until this holds.
func ValidCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// validEmail is a shape check only; the provider is the authority.
func validEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}
