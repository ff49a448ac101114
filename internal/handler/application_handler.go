package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// ApplicationHandler は公募への申請のHTTPハンドラー。
type ApplicationHandler struct {
	applications repository.ApplicationRepository
	grants       repository.GrantRepository
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(applications repository.ApplicationRepository, grants repository.GrantRepository) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, grants: grants}
}

type applicationResponse struct {
	ID                  int64     `json:"id"`
	GrantOpportunityID  int64     `json:"grant_opportunity_id"`
	ProjectTitle        string    `json:"project_title"`
	Status              string    `json:"status"`
	RequestedAmount     *int64    `json:"requested_amount"`
	CoFinancingAmount   *int64    `json:"co_financing_amount"`
	ProjectStartDate    *string   `json:"project_start_date"`
	ProjectEndDate      *string   `json:"project_end_date"`
	TargetBeneficiaries string    `json:"target_beneficiaries,omitempty"`
	AssignedToUserID    *int64    `json:"assigned_to_user_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toApplicationResponse(a *model.Application) applicationResponse {
	return applicationResponse{
		ID:                  a.ID,
		GrantOpportunityID:  a.GrantOpportunityID,
		ProjectTitle:        a.ProjectTitle,
		Status:              string(a.Status),
		RequestedAmount:     a.RequestedAmount,
		CoFinancingAmount:   a.CoFinancingAmount,
		ProjectStartDate:    formatDate(a.ProjectStartDate),
		ProjectEndDate:      formatDate(a.ProjectEndDate),
		TargetBeneficiaries: a.TargetBeneficiaries,
		AssignedToUserID:    a.AssignedToUserID,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

// formatDate はnilを保ったまま日付をYYYY-MM-DDにする。
func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

// parseDate は空文字列をnilとして YYYY-MM-DD を解析する。
func parseDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

type createApplicationRequest struct {
	GrantOpportunityID  int64  `json:"grant_opportunity_id"`
	ProjectTitle        string `json:"project_title"`
	RequestedAmount     *int64 `json:"requested_amount"`
	CoFinancingAmount   *int64 `json:"co_financing_amount"`
	ProjectStartDate    string `json:"project_start_date"`
	ProjectEndDate      string `json:"project_end_date"`
	TargetBeneficiaries string `json:"target_beneficiaries"`
	AssignedToUserID    *int64 `json:"assigned_to_user_id"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// List は申請一覧を返す。status, grant_id, assigned_to で絞り込める。
// GET /api/applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ApplicationFilter{Status: model.ApplicationStatus(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(string(filter.Status)))
		return
	}

	var err error
	if filter.GrantOpportunityID, err = queryInt64(r, "grant_id"); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("grant_id must be an integer"))
		return
	}
	if filter.AssignedToUserID, err = queryInt64(r, "assigned_to"); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("assigned_to must be an integer"))
		return
	}

	apps, err := h.applications.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]applicationResponse, len(apps))
	for i, a := range apps {
		out[i] = toApplicationResponse(a)
	}
	writeJSON(w, http.StatusOK, out)
}

// Get は申請を1件返す。
// GET /api/applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.applications.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if app == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewApplicationNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// Create は下書き状態の申請を作成する。未指定の担当者は作成者になる。
// POST /api/applications
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	var req createApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProjectTitle = strings.TrimSpace(req.ProjectTitle)
	if req.GrantOpportunityID <= 0 || req.ProjectTitle == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("grant_opportunity_id and project_title are required"))
		return
	}
	start, okStart := parseDate(req.ProjectStartDate)
	end, okEnd := parseDate(req.ProjectEndDate)
	if !okStart || !okEnd {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("project dates must be YYYY-MM-DD"))
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("project_end_date is before project_start_date"))
		return
	}

	grant, err := h.grants.FindByID(r.Context(), req.GrantOpportunityID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if grant == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewGrantNotFoundError(req.GrantOpportunityID))
		return
	}

	assignee := req.AssignedToUserID
	if assignee == nil {
		id := user.ID
		assignee = &id
	}
	app := &model.Application{
		GrantOpportunityID:  grant.ID,
		ProjectTitle:        req.ProjectTitle,
		Status:              model.ApplicationStatusDraft,
		RequestedAmount:     req.RequestedAmount,
		CoFinancingAmount:   req.CoFinancingAmount,
		ProjectStartDate:    start,
		ProjectEndDate:      end,
		TargetBeneficiaries: req.TargetBeneficiaries,
		AssignedToUserID:    assignee,
	}
	if err := h.applications.Create(r.Context(), app); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// UpdateStatus は申請の状態を更新する。
// PUT /api/applications/{id}/status
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status := model.ApplicationStatus(req.Status)
	if !status.Valid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(req.Status))
		return
	}

	found, err := h.applications.UpdateStatus(r.Context(), id, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !found {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewApplicationNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}
