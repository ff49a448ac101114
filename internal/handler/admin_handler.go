package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// RoleChanger はユーザーのロールを変更するインターフェース。
// user.Serviceが実装する。
type RoleChanger interface {
	ChangeRole(ctx context.Context, actorID, targetID int64, role model.Role) error
}

// AdminHandler は管理者向けのユーザー管理HTTPハンドラー。
type AdminHandler struct {
	users     repository.UserRepository
	documents repository.DocumentRepository
	roles     RoleChanger
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(users repository.UserRepository, documents repository.DocumentRepository, roles RoleChanger) *AdminHandler {
	return &AdminHandler{users: users, documents: documents, roles: roles}
}

// ListUsers は全ユーザーを返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]*userResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, out)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole はユーザーのロールを変更する。
// 自分自身の管理者権限は外せない。
// PUT /api/admin/users/{id}/role
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	admin := middleware.CurrentUser(r)
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := model.Role(req.Role)
	if err := h.roles.ChangeRole(r.Context(), admin.ID, id, role); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "role": role})
}

// UserDocuments は指定ユーザーがアップロードした文書を返す。
// GET /api/admin/users/{id}/documents
func (h *AdminHandler) UserDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	docs, err := h.documents.List(r.Context(), model.DocumentFilter{UploadedByUserID: id})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponses(docs))
}
