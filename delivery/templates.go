package delivery

import (
	"html/template"
	"path/filepath"
)

// Template globals, parsed once at startup.
var (
	signInTemplate       *template.Template
	signUpTemplate       *template.Template
	createOrgTemplate    *template.Template
	sessionTasksTemplate *template.Template
	manageMFATemplate    *template.Template
	addMFATemplate       *template.Template
	homeTemplate         *template.Template
	profileTemplate      *template.Template
	errorTemplate        *template.Template
)

// ParseAllTemplates pre-parses all HTML templates at startup for efficiency.
func ParseAllTemplates(dir string) {
	parse := func(name string) *template.Template {
		return template.Must(template.ParseFiles(filepath.Join(dir, name)))
	}
	signInTemplate = parse("sign_in.html")
	signUpTemplate = parse("sign_up.html")
	createOrgTemplate = parse("create_organization.html")
	sessionTasksTemplate = parse("session_tasks.html")
	manageMFATemplate = parse("manage_mfa.html")
	addMFATemplate = parse("add_mfa.html")
	homeTemplate = parse("home.html")
	profileTemplate = parse("profile.html")
	errorTemplate = parse("error.html")
}
