package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/report"
)

// ReportServiceInterface はレポートハンドラーが必要とするサービスインターフェース。
type ReportServiceInterface interface {
	Generate(ctx context.Context, user *model.User, req report.GenerateRequest) (*model.ImpactReport, error)
	List(ctx context.Context, userID int64) ([]*model.ImpactReport, error)
}

// ReportHandler はインパクトレポートのHTTPハンドラー。
type ReportHandler struct {
	service ReportServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

type reportResponse struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	Title         string    `json:"title"`
	ReportType    string    `json:"report_type"`
	Content       string    `json:"content"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toReportResponse(r *model.ImpactReport) reportResponse {
	return reportResponse{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		Title:         r.Title,
		ReportType:    r.ReportType,
		Content:       r.Content,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}

// Generate はインパクトレポートを生成する。AI用のレート制限の内側に置く。
// POST /api/reports
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	var req report.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	generated, err := h.service.Generate(r.Context(), user, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportResponse(generated))
}

// List はログイン中ユーザーが作成したレポートを返す。
// GET /api/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	reports, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]reportResponse, len(reports))
	for i, rep := range reports {
		out[i] = toReportResponse(rep)
	}
	writeJSON(w, http.StatusOK, out)
}
