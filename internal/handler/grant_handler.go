package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

const (
	defaultUpcomingDays = 30
	maxUpcomingDays     = 365
	maxGrantListLimit   = 500
)

// GrantHandler は助成金公募のHTTPハンドラー。
type GrantHandler struct {
	grants repository.GrantRepository
	now    func() time.Time
}

// NewGrantHandler はGrantHandlerを生成する。
func NewGrantHandler(grants repository.GrantRepository) *GrantHandler {
	return &GrantHandler{grants: grants, now: time.Now}
}

type grantResponse struct {
	ID                    int64     `json:"id"`
	FundingSource         string    `json:"funding_source"`
	ProgramTitle          string    `json:"program_title"`
	ApplicationDeadline   time.Time `json:"application_deadline"`
	MinAmount             *int64    `json:"min_amount"`
	MaxAmount             *int64    `json:"max_amount"`
	CoFinancingPercentage *int      `json:"co_financing_percentage"`
	EligibilityCriteria   string    `json:"eligibility_criteria,omitempty"`
	ThematicArea          string    `json:"thematic_area,omitempty"`
	GeographicScope       string    `json:"geographic_scope,omitempty"`
	Status                string    `json:"status"`
	AssignedToUserID      *int64    `json:"assigned_to_user_id"`
	CallDocumentationURL  string    `json:"call_documentation_url,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func toGrantResponse(g *model.GrantOpportunity) grantResponse {
	return grantResponse{
		ID:                    g.ID,
		FundingSource:         g.FundingSource,
		ProgramTitle:          g.ProgramTitle,
		ApplicationDeadline:   g.ApplicationDeadline,
		MinAmount:             g.MinAmount,
		MaxAmount:             g.MaxAmount,
		CoFinancingPercentage: g.CoFinancingPercentage,
		EligibilityCriteria:   g.EligibilityCriteria,
		ThematicArea:          g.ThematicArea,
		GeographicScope:       g.GeographicScope,
		Status:                string(g.Status),
		AssignedToUserID:      g.AssignedToUserID,
		CallDocumentationURL:  g.CallDocumentationURL,
		Notes:                 g.Notes,
		CreatedAt:             g.CreatedAt,
		UpdatedAt:             g.UpdatedAt,
	}
}

func toGrantResponses(grants []*model.GrantOpportunity) []grantResponse {
	out := make([]grantResponse, len(grants))
	for i, g := range grants {
		out[i] = toGrantResponse(g)
	}
	return out
}

// grantRequest は公募の作成・更新リクエストのボディ。
type grantRequest struct {
	FundingSource         string    `json:"funding_source"`
	ProgramTitle          string    `json:"program_title"`
	ApplicationDeadline   time.Time `json:"application_deadline"`
	MinAmount             *int64    `json:"min_amount"`
	MaxAmount             *int64    `json:"max_amount"`
	CoFinancingPercentage *int      `json:"co_financing_percentage"`
	EligibilityCriteria   string    `json:"eligibility_criteria"`
	ThematicArea          string    `json:"thematic_area"`
	GeographicScope       string    `json:"geographic_scope"`
	Status                string    `json:"status"`
	AssignedToUserID      *int64    `json:"assigned_to_user_id"`
	CallDocumentationURL  string    `json:"call_documentation_url"`
	Notes                 string    `json:"notes"`
}

// validate はリクエストを検証し、問題があればAPIErrorを返す。
func (req *grantRequest) validate() *model.APIError {
	req.FundingSource = strings.TrimSpace(req.FundingSource)
	req.ProgramTitle = strings.TrimSpace(req.ProgramTitle)
	switch {
	case req.FundingSource == "":
		return model.NewInvalidRequestError("funding_source is required")
	case req.ProgramTitle == "":
		return model.NewInvalidRequestError("program_title is required")
	case req.ApplicationDeadline.IsZero():
		return model.NewInvalidRequestError("application_deadline is required")
	case req.MinAmount != nil && *req.MinAmount < 0, req.MaxAmount != nil && *req.MaxAmount < 0:
		return model.NewInvalidRequestError("amounts must not be negative")
	case req.MinAmount != nil && req.MaxAmount != nil && *req.MinAmount > *req.MaxAmount:
		return model.NewInvalidRequestError("min_amount exceeds max_amount")
	case req.CoFinancingPercentage != nil && (*req.CoFinancingPercentage < 0 || *req.CoFinancingPercentage > 100):
		return model.NewInvalidRequestError("co_financing_percentage must be between 0 and 100")
	case req.CallDocumentationURL != "" && !strings.HasPrefix(req.CallDocumentationURL, "https://") && !strings.HasPrefix(req.CallDocumentationURL, "http://"):
		return model.NewInvalidRequestError("call_documentation_url must be an http(s) URL")
	}
	if req.Status == "" {
		req.Status = string(model.GrantStatusMonitoring)
	}
	if !model.GrantStatus(req.Status).Valid() {
		return model.NewInvalidStatusError(req.Status)
	}
	return nil
}

func (req *grantRequest) apply(g *model.GrantOpportunity) {
	g.FundingSource = req.FundingSource
	g.ProgramTitle = req.ProgramTitle
	g.ApplicationDeadline = req.ApplicationDeadline
	g.MinAmount = req.MinAmount
	g.MaxAmount = req.MaxAmount
	g.CoFinancingPercentage = req.CoFinancingPercentage
	g.EligibilityCriteria = req.EligibilityCriteria
	g.ThematicArea = req.ThematicArea
	g.GeographicScope = req.GeographicScope
	g.Status = model.GrantStatus(req.Status)
	g.AssignedToUserID = req.AssignedToUserID
	g.CallDocumentationURL = req.CallDocumentationURL
	g.Notes = req.Notes
}

// List は公募一覧を返す。status, assigned_to, limit で絞り込める。
// GET /api/grants
func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.GrantFilter{Status: model.GrantStatus(q.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(string(filter.Status)))
		return
	}

	assignee, err := queryInt64(r, "assigned_to")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("assigned_to must be an integer"))
		return
	}
	filter.AssignedToUserID = assignee

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxGrantListLimit {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limit must be between 1 and 500"))
			return
		}
		filter.Limit = limit
	}

	grants, err := h.grants.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponses(grants))
}

// Upcoming は締切がdays日以内（デフォルト30日）の公募を締切順に返す。
// GET /api/grants/upcoming
func (h *GrantHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	days := defaultUpcomingDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxUpcomingDays {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("days must be between 1 and 365"))
			return
		}
		days = n
	}

	now := h.now()
	grants, err := h.grants.ListUpcoming(r.Context(), now, now.AddDate(0, 0, days))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponses(grants))
}

// Get は公募を1件返す。
// GET /api/grants/{id}
func (h *GrantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	grant, err := h.grants.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if grant == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewGrantNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponse(grant))
}

// Create は公募を作成する。管理者のみ。
// POST /api/grants
func (h *GrantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := req.validate(); apiErr != nil {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	grant := &model.GrantOpportunity{}
	req.apply(grant)
	if err := h.grants.Create(r.Context(), grant); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGrantResponse(grant))
}

// Update は公募を置き換える。管理者のみ。
// PUT /api/grants/{id}
func (h *GrantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req grantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := req.validate(); apiErr != nil {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	grant := &model.GrantOpportunity{ID: id}
	req.apply(grant)
	found, err := h.grants.Update(r.Context(), grant)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !found {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewGrantNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponse(grant))
}

// Delete は公募を削除する。管理者のみ。
// DELETE /api/grants/{id}
func (h *GrantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.grants.Delete(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !found {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewGrantNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
