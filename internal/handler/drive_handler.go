package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/grantdesk/internal/drive"
	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
)

// DriveServiceInterface はDriveハンドラーが必要とするサービスインターフェース。
type DriveServiceInterface interface {
	AuthURL(ctx context.Context, userID int64) (string, error)
	HandleCallback(ctx context.Context, userID int64, state, code string) error
	Status(ctx context.Context, userID int64) (bool, error)
	Disconnect(ctx context.Context, userID int64) error
	ListFiles(ctx context.Context, userID int64, query, pageToken string) (*drive.FileList, error)
	Import(ctx context.Context, userID int64, req drive.ImportRequest) (*model.Document, error)
}

// DriveHandler はGoogle Drive連携のHTTPハンドラー。
// Googleからのリダイレクトはフロントエンドが受け、codeとstateをcallbackにPOSTする。
type DriveHandler struct {
	service DriveServiceInterface
}

// NewDriveHandler はDriveHandlerを生成する。
func NewDriveHandler(service DriveServiceInterface) *DriveHandler {
	return &DriveHandler{service: service}
}

// AuthURL は同意画面のURLを返す。
// GET /api/drive/auth-url
func (h *DriveHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	u, err := h.service.AuthURL(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

type driveCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// Callback は認可コードを交換して連携を完了する。
// POST /api/drive/callback
func (h *DriveHandler) Callback(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	var req driveCallbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || req.State == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("code and state are required"))
		return
	}

	if err := h.service.HandleCallback(r.Context(), user.ID, req.State, req.Code); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": true})
}

// Status は連携状態を返す。
// GET /api/drive/status
func (h *DriveHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	connected, err := h.service.Status(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
}

// Disconnect は連携を解除する。
// DELETE /api/drive/connection
func (h *DriveHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if err := h.service.Disconnect(r.Context(), user.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Files はDrive上のファイルを一覧する。q でファイル名を部分一致検索、page_token で次ページ。
// GET /api/drive/files
func (h *DriveHandler) Files(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	q := r.URL.Query()

	list, err := h.service.ListFiles(r.Context(), user.ID, strings.TrimSpace(q.Get("q")), q.Get("page_token"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type driveImportRequest struct {
	FileID         string `json:"file_id"`
	ApplicationID  *int64 `json:"application_id"`
	DocumentType   string `json:"document_type"`
	ExpirationDate string `json:"expiration_date"`
	Notes          string `json:"notes"`
}

// Import はDrive上のファイルを文書として取り込む。
// POST /api/drive/import
func (h *DriveHandler) Import(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	var req driveImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FileID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("file_id is required"))
		return
	}
	expires, ok := parseDate(req.ExpirationDate)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("expiration_date must be YYYY-MM-DD"))
		return
	}

	doc, err := h.service.Import(r.Context(), user.ID, drive.ImportRequest{
		FileID:         req.FileID,
		ApplicationID:  req.ApplicationID,
		DocumentType:   req.DocumentType,
		ExpirationDate: expires,
		Notes:          req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}
