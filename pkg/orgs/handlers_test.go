package orgs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrail/jobtrail/pkg/audit"
	"github.com/jobtrail/jobtrail/pkg/contextkeys"
	"github.com/jobtrail/jobtrail/pkg/observability"
	"github.com/jobtrail/jobtrail/pkg/rbac"
)

// stubService returns canned results so handler tests exercise only the
// HTTP mapping.
type stubService struct {
	Service

	createOrgFn func(ctx context.Context, actorID int64, req *CreateOrgRequest) (*Organization, error)
	getOrgFn    func(ctx context.Context, actorID, orgID int64) (*Organization, error)
	inviteFn    func(ctx context.Context, actorID, orgID int64, req *InviteMemberRequest) (*Invitation, error)
	acceptFn    func(ctx context.Context, userID int64, userEmail, token string) (*AcceptResult, error)
	changeFn    func(ctx context.Context, actorID, orgID, memberID int64, req *UpdateMemberRoleRequest) error
	activityFn  func(ctx context.Context, actorID, orgID int64, limit int) ([]*audit.Entry, error)
}

func (s *stubService) CreateOrganization(ctx context.Context, actorID int64, req *CreateOrgRequest) (*Organization, error) {
	return s.createOrgFn(ctx, actorID, req)
}

func (s *stubService) GetOrganization(ctx context.Context, actorID, orgID int64) (*Organization, error) {
	return s.getOrgFn(ctx, actorID, orgID)
}

func (s *stubService) InviteMember(ctx context.Context, actorID, orgID int64, req *InviteMemberRequest) (*Invitation, error) {
	return s.inviteFn(ctx, actorID, orgID, req)
}

func (s *stubService) AcceptInvitation(ctx context.Context, userID int64, userEmail, token string) (*AcceptResult, error) {
	return s.acceptFn(ctx, userID, userEmail, token)
}

func (s *stubService) ChangeMemberRole(ctx context.Context, actorID, orgID, memberID int64, req *UpdateMemberRoleRequest) error {
	return s.changeFn(ctx, actorID, orgID, memberID, req)
}

func (s *stubService) ListActivity(ctx context.Context, actorID, orgID int64, limit int) ([]*audit.Entry, error) {
	return s.activityFn(ctx, actorID, orgID, limit)
}

func newTestRouter(svc Service) *mux.Router {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	router := mux.NewRouter()
	NewHandlers(svc, logger).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(contextkeys.WithIdentity(req.Context(),
		&contextkeys.Identity{UserID: 7, Email: "actor@example.com"}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrganizationHandler(t *testing.T) {
	svc := &stubService{
		createOrgFn: func(ctx context.Context, actorID int64, req *CreateOrgRequest) (*Organization, error) {
			assert.Equal(t, int64(7), actorID)
			return &Organization{ID: 1, Name: req.Name, Slug: "acme-corp", Tier: TierFree}, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodPost, "/organizations", CreateOrgRequest{Name: "Acme Corp"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var org Organization
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &org))
	assert.Equal(t, "acme-corp", org.Slug)
}

func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", newError(KindValidation, "bad input"), http.StatusBadRequest, "validation"},
		{"not found", newError(KindNotFound, "missing"), http.StatusNotFound, "not_found"},
		{"forbidden", newError(KindForbidden, "nope"), http.StatusForbidden, "forbidden"},
		{"conflict", newError(KindConflict, "taken"), http.StatusConflict, "conflict"},
		{"expired", newError(KindExpired, "too late"), http.StatusGone, "expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				getOrgFn: func(ctx context.Context, actorID, orgID int64) (*Organization, error) {
					return nil, tt.err
				},
			}
			rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/organizations/1", nil)
			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestHandlerHidesInternalErrors(t *testing.T) {
	svc := &stubService{
		getOrgFn: func(ctx context.Context, actorID, orgID int64) (*Organization, error) {
			return nil, assert.AnError
		},
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/organizations/1", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestAcceptInvitationHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &stubService{
			acceptFn: func(ctx context.Context, userID int64, userEmail, token string) (*AcceptResult, error) {
				assert.Equal(t, int64(7), userID)
				assert.Equal(t, "actor@example.com", userEmail)
				assert.Equal(t, "tok123", token)
				return &AcceptResult{
					Outcome:      AcceptSuccess,
					Organization: &Organization{ID: 1, Slug: "acme-corp"},
					Role:         rbac.RoleMember,
				}, nil
			},
		}
		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/invitations/tok123/accept", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "SUCCESS", body["code"])
		assert.Equal(t, "member", body["role"])
	})

	t.Run("already a member maps to 409", func(t *testing.T) {
		svc := &stubService{
			acceptFn: func(ctx context.Context, userID int64, userEmail, token string) (*AcceptResult, error) {
				return &AcceptResult{
					Outcome:      AcceptAlreadyMember,
					Organization: &Organization{ID: 1, Slug: "acme-corp"},
					Role:         rbac.RoleMember,
				}, nil
			},
		}
		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/invitations/tok123/accept", nil)
		require.Equal(t, http.StatusConflict, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ALREADY_MEMBER", body["code"])
	})

	t.Run("expired maps to 410", func(t *testing.T) {
		svc := &stubService{
			acceptFn: func(ctx context.Context, userID int64, userEmail, token string) (*AcceptResult, error) {
				return nil, newError(KindExpired, "invitation has expired")
			},
		}
		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/invitations/tok123/accept", nil)
		require.Equal(t, http.StatusGone, rec.Code)
	})
}

func TestChangeMemberRoleHandler(t *testing.T) {
	svc := &stubService{
		changeFn: func(ctx context.Context, actorID, orgID, memberID int64, req *UpdateMemberRoleRequest) error {
			assert.Equal(t, int64(1), orgID)
			assert.Equal(t, int64(5), memberID)
			assert.Equal(t, "manager", req.Role)
			return nil
		},
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/organizations/1/members/5/role",
		UpdateMemberRoleRequest{Role: "manager"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerRejectsUnauthenticatedRequests(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/organizations/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListActivityHandlerLimit(t *testing.T) {
	var gotLimit int
	svc := &stubService{
		activityFn: func(ctx context.Context, actorID, orgID int64, limit int) ([]*audit.Entry, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/organizations/1/activity?limit=25", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, gotLimit)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandlerRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := doRequest(t, router, http.MethodPost, "/organizations",
		map[string]interface{}{"name": "Acme", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
