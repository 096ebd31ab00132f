// Package model holds the plain form shapes posted by the pages. No
// invariants beyond shape live here; validation happens at submission time
// in the flow controllers.
package model

import (
	"net/http"
	"strings"
)

// SignInForm is the first-factor form.
type SignInForm struct {
	FlowID     string
	Identifier string
	Password   string
}

func BindSignIn(r *http.Request) SignInForm {
	return SignInForm{
		FlowID:     r.Form.Get("flow"),
		Identifier: strings.TrimSpace(r.Form.Get("identifier")),
		Password:   r.Form.Get("password"),
	}
}

// CodeForm is any single one-time-code form (second factor, email
// verification, TOTP verify).
type CodeForm struct {
	FlowID string
	Code   string
}

func BindCode(r *http.Request) CodeForm {
	return CodeForm{
		FlowID: r.Form.Get("flow"),
		Code:   strings.TrimSpace(r.Form.Get("code")),
	}
}

// ResetRequestForm asks for a recovery code.
type ResetRequestForm struct {
	FlowID string
	Email  string
}

func BindResetRequest(r *http.Request) ResetRequestForm {
	return ResetRequestForm{
		FlowID: r.Form.Get("flow"),
		Email:  strings.TrimSpace(r.Form.Get("email")),
	}
}

// ResetCompleteForm carries the recovery code and replacement password.
type ResetCompleteForm struct {
	FlowID      string
	Code        string
	NewPassword string
}

func BindResetComplete(r *http.Request) ResetCompleteForm {
	return ResetCompleteForm{
		FlowID:      r.Form.Get("flow"),
		Code:        strings.TrimSpace(r.Form.Get("code")),
		NewPassword: r.Form.Get("new_password"),
	}
}

// SignUpForm is the registration form.
type SignUpForm struct {
	FlowID    string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func BindSignUp(r *http.Request) SignUpForm {
	return SignUpForm{
		FlowID:    r.Form.Get("flow"),
		FirstName: strings.TrimSpace(r.Form.Get("first_name")),
		LastName:  strings.TrimSpace(r.Form.Get("last_name")),
		Email:     strings.TrimSpace(r.Form.Get("email")),
		Password:  r.Form.Get("password"),
	}
}

// OrganizationForm names a new organization.
type OrganizationForm struct {
	Name string
}

func BindOrganization(r *http.Request) OrganizationForm {
	return OrganizationForm{Name: strings.TrimSpace(r.Form.Get("name"))}
}
