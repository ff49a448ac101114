package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// DocumentHandler は文書のHTTPハンドラー。
// 一覧と削除はログイン中ユーザーがアップロードした文書に限る。
type DocumentHandler struct {
	documents repository.DocumentRepository
	now       func() time.Time
}

// NewDocumentHandler はDocumentHandlerを生成する。
func NewDocumentHandler(documents repository.DocumentRepository) *DocumentHandler {
	return &DocumentHandler{documents: documents, now: time.Now}
}

type documentResponse struct {
	ID             int64     `json:"id"`
	ApplicationID  *int64    `json:"application_id"`
	DocumentType   string    `json:"document_type"`
	DocumentName   string    `json:"document_name"`
	FileURL        string    `json:"file_url"`
	MimeType       string    `json:"mime_type,omitempty"`
	FileSize       int64     `json:"file_size"`
	ExpirationDate *string   `json:"expiration_date"`
	UploadedBy     *int64    `json:"uploaded_by_user_id"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toDocumentResponse(d *model.Document) documentResponse {
	return documentResponse{
		ID:             d.ID,
		ApplicationID:  d.ApplicationID,
		DocumentType:   d.DocumentType,
		DocumentName:   d.DocumentName,
		FileURL:        d.FileURL,
		MimeType:       d.MimeType,
		FileSize:       d.FileSize,
		ExpirationDate: formatDate(d.ExpirationDate),
		UploadedBy:     d.UploadedByUserID,
		Notes:          d.Notes,
		CreatedAt:      d.CreatedAt,
	}
}

func toDocumentResponses(docs []*model.Document) []documentResponse {
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocumentResponse(d)
	}
	return out
}

// List はログイン中ユーザーの文書一覧を返す。application_id, document_type で絞り込める。
// GET /api/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	filter := model.DocumentFilter{
		DocumentType:     r.URL.Query().Get("document_type"),
		UploadedByUserID: user.ID,
	}
	appID, err := queryInt64(r, "application_id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("application_id must be an integer"))
		return
	}
	if appID > 0 {
		filter.ApplicationID = &appID
	}

	docs, err := h.documents.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponses(docs))
}

// Expiring は有効期限がdays日以内（デフォルト30日）に切れるログイン中ユーザーの文書を返す。
// GET /api/documents/expiring
func (h *DocumentHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
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
	docs, err := h.documents.ListExpiring(r.Context(), now, now.AddDate(0, 0, days))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	own := docs[:0]
	for _, d := range docs {
		if d.UploadedByUserID != nil && *d.UploadedByUserID == user.ID {
			own = append(own, d)
		}
	}
	writeJSON(w, http.StatusOK, toDocumentResponses(own))
}

// Delete はログイン中ユーザーがアップロードした文書を削除する。
// 他のユーザーの文書は存在しないものとして404を返す。
// DELETE /api/documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.documents.DeleteOwned(r.Context(), id, user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !found {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDocumentNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
