package orgs

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jobtrail/jobtrail/pkg/audit"
	"github.com/jobtrail/jobtrail/pkg/contextkeys"
	"github.com/jobtrail/jobtrail/pkg/httputil"
	"github.com/jobtrail/jobtrail/pkg/observability"
)

// Handlers exposes the organization service over HTTP. All routes expect
// an authenticated identity in the request context; the auth middleware
// guarantees that.
type Handlers struct {
	service Service
	logger  *observability.Logger
}

// NewHandlers creates HTTP handlers backed by the given service.
func NewHandlers(service Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes mounts all organization routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/organizations", h.CreateOrganization).Methods(http.MethodPost)
	r.HandleFunc("/organizations", h.ListOrganizations).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}", h.GetOrganization).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}", h.UpdateOrganization).Methods(http.MethodPut)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/settings", h.GetSettings).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/settings", h.UpdateSettings).Methods(http.MethodPut)

	r.HandleFunc("/organizations/{org_id:[0-9]+}/members", h.ListMembers).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/members/invite", h.InviteMember).Methods(http.MethodPost)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/members/{member_id:[0-9]+}/role", h.ChangeMemberRole).Methods(http.MethodPut)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/members/{member_id:[0-9]+}", h.RemoveMember).Methods(http.MethodDelete)

	r.HandleFunc("/organizations/{org_id:[0-9]+}/invitations", h.ListInvitations).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/invitations/{invitation_id:[0-9]+}", h.RevokeInvitation).Methods(http.MethodDelete)
	r.HandleFunc("/invitations/{token}/accept", h.AcceptInvitation).Methods(http.MethodPost)

	r.HandleFunc("/organizations/{org_id:[0-9]+}/templates", h.ListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/templates", h.CreateTemplate).Methods(http.MethodPost)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/templates/{template_id:[0-9]+}", h.GetTemplate).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/templates/{template_id:[0-9]+}", h.UpdateTemplate).Methods(http.MethodPut)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/templates/{template_id:[0-9]+}", h.DeleteTemplate).Methods(http.MethodDelete)

	r.HandleFunc("/organizations/{org_id:[0-9]+}/analytics", h.GetAnalytics).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{org_id:[0-9]+}/activity", h.ListActivity).Methods(http.MethodGet)
}

// writeError maps domain error kinds onto status codes. Anything without
// a kind is an internal error and is logged, not leaked.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if kind, ok := kindOf(err); ok {
		status := http.StatusInternalServerError
		switch kind {
		case KindValidation:
			status = http.StatusBadRequest
		case KindNotFound:
			status = http.StatusNotFound
		case KindForbidden:
			status = http.StatusForbidden
		case KindConflict:
			status = http.StatusConflict
		case KindExpired:
			status = http.StatusGone
		}
		httputil.WriteErrorCode(w, status, kind.String(), err.Error())
		return
	}
	h.logger.FromContext(r.Context()).WithError(err).Error("request failed")
	httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handlers) identity(w http.ResponseWriter, r *http.Request) (*contextkeys.Identity, bool) {
	id, ok := contextkeys.IdentityFrom(r.Context())
	if !ok || id == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return id, true
}

func (h *Handlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req CreateOrgRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	org, err := h.service.CreateOrganization(r.Context(), id.UserID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgs, err := h.service.ListOrganizations(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []*Organization{}
	}
	httputil.WriteJSON(w, http.StatusOK, orgs)
}

func (h *Handlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	org, err := h.service.GetOrganization(r.Context(), id.UserID, orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateOrgRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	org, err := h.service.UpdateOrganization(r.Context(), id.UserID, orgID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := h.service.GetSettings(r.Context(), id.UserID, orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Settings map[string]interface{} `json:"settings"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Settings == nil {
		httputil.WriteError(w, http.StatusBadRequest, "settings object is required")
		return
	}
	if err := h.service.UpdateSettings(r.Context(), id.UserID, orgID, req.Settings); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": req.Settings})
}

func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	members, err := h.service.ListMembers(r.Context(), id.UserID, orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if members == nil {
		members = []*Member{}
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

func (h *Handlers) InviteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req InviteMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := h.service.InviteMember(r.Context(), id.UserID, orgID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Handlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	invitations, err := h.service.ListInvitations(r.Context(), id.UserID, orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if invitations == nil {
		invitations = []*Invitation{}
	}
	httputil.WriteJSON(w, http.StatusOK, invitations)
}

func (h *Handlers) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	invitationID, err := httputil.PathID(r, "invitation_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.RevokeInvitation(r.Context(), id.UserID, orgID, invitationID); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AcceptInvitation resolves a pending invitation token. The outcome is
// reported both in the status code and a machine-readable code field:
// 200 SUCCESS, 409 ALREADY_MEMBER, 410 when the token had expired.
func (h *Handlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	token := mux.Vars(r)["token"]

	result, err := h.service.AcceptInvitation(r.Context(), id.UserID, id.Email, token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body := map[string]interface{}{
		"code":         "SUCCESS",
		"organization": result.Organization,
		"role":         result.Role,
	}
	if result.Outcome == AcceptAlreadyMember {
		body["code"] = "ALREADY_MEMBER"
		httputil.WriteJSON(w, http.StatusConflict, body)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

func (h *Handlers) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	memberID, err := httputil.PathID(r, "member_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateMemberRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.ChangeMemberRole(r.Context(), id.UserID, orgID, memberID, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	memberID, err := httputil.PathID(r, "member_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.RemoveMember(r.Context(), id.UserID, orgID, memberID); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req TemplateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := h.service.CreateTemplate(r.Context(), id.UserID, orgID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tpl)
}

func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	templates, err := h.service.ListTemplates(r.Context(), id.UserID, orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if templates == nil {
		templates = []*Template{}
	}
	httputil.WriteJSON(w, http.StatusOK, templates)
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	templateID, err := httputil.PathID(r, "template_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := h.service.GetTemplate(r.Context(), id.UserID, orgID, templateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	templateID, err := httputil.PathID(r, "template_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req TemplateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := h.service.UpdateTemplate(r.Context(), id.UserID, orgID, templateID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	templateID, err := httputil.PathID(r, "template_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.DeleteTemplate(r.Context(), id.UserID, orgID, templateID); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	analytics, err := h.service.GetAnalytics(r.Context(), id.UserID, orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analytics)
}

func (h *Handlers) ListActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.PathID(r, "org_id")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := httputil.QueryInt(r, "limit", 50)
	entries, err := h.service.ListActivity(r.Context(), id.UserID, orgID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
