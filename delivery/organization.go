package delivery

import (
	"net/http"

	"auth-portal/delivery/model"
	"auth-portal/identity"
)

type createOrgPageData struct {
	Name   string
	Notice string
}

func (h *HTTPEndpoint) renderCreateOrg(w http.ResponseWriter, data createOrgPageData) {
	if err := createOrgTemplate.ExecuteTemplate(w, "create_organization.html", data); err != nil {
		h.app.Logger().Error().Err(err).Msg("failed to execute create-organization template")
		http.Error(w, "Failed to render the page", http.StatusInternalServerError)
	}
}

func (h *HTTPEndpoint) createOrganizationHandler(w http.ResponseWriter, r *http.Request) {
	h.renderCreateOrg(w, createOrgPageData{})
}

// createOrganizationSubmitHandler creates the organization, makes it the
// session's active organization and sends the user home.
func (h *HTTPEndpoint) createOrganizationSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	form := model.BindOrganization(r)
	if form.Name == "" {
		h.renderCreateOrg(w, createOrgPageData{Notice: "Please enter an organization name."})
		return
	}
	if len(form.Name) > 100 {
		h.renderCreateOrg(w, createOrgPageData{Name: form.Name, Notice: "Organization names are limited to 100 characters."})
		return
	}

	token := h.sessionToken(r)
	org, err := h.app.Identity().CreateOrganization(r.Context(), token, form.Name)
	if err != nil {
		h.renderCreateOrg(w, createOrgPageData{Name: form.Name, Notice: identity.UserMessage(err)})
		return
	}
	if err := h.app.Identity().SetActiveOrganization(r.Context(), token, org.ID); err != nil {
		h.renderCreateOrg(w, createOrgPageData{Name: form.Name, Notice: identity.UserMessage(err)})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// skipOrganizationHandler lets the user defer organization setup.
func (h *HTTPEndpoint) skipOrganizationHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
