package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/grantdesk/internal/auth"
	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
)

// LanguageUpdater は表示言語を更新するインターフェース。
type LanguageUpdater interface {
	UpdateLanguage(ctx context.Context, id int64, lang model.Language) error
}

// AuthHandler は現在の認可状態とユーザー設定を扱うHTTPハンドラー。
// ログイン自体はIdP側で行うため、ここではリダイレクトやCookieを扱わない。
type AuthHandler struct {
	users LanguageUpdater
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(users LanguageUpdater) *AuthHandler {
	return &AuthHandler{users: users}
}

type userResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name,omitempty"`
	Email             string    `json:"email,omitempty"`
	LoginMethod       string    `json:"login_method,omitempty"`
	Role              string    `json:"role"`
	PreferredLanguage string    `json:"preferred_language"`
	LastSignedIn      time.Time `json:"last_signed_in"`
	CreatedAt         time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) *userResponse {
	return &userResponse{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		LoginMethod:       u.LoginMethod,
		Role:              string(u.Role),
		PreferredLanguage: string(u.PreferredLanguage),
		LastSignedIn:      u.LastSignedIn,
		CreatedAt:         u.CreatedAt,
	}
}

// meResponse は GET /api/auth/me のレスポンス。
// 縮退状態ではsubjectのみを返し、userはnullになる。
type meResponse struct {
	Capability string        `json:"capability"`
	Subject    string        `json:"subject,omitempty"`
	User       *userResponse `json:"user"`
}

// Me は現在のリクエストの認可状態を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	resp := meResponse{Capability: ac.Capability().String()}
	if id := ac.Identity(); id != nil {
		resp.Subject = id.Subject
	}
	if u := ac.User(); u != nil {
		resp.User = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateLanguageRequest struct {
	Language string `json:"language"`
}

// UpdateLanguage はログイン中ユーザーの表示言語を更新する。
// PUT /api/auth/language
func (h *AuthHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	var req updateLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lang := model.Language(req.Language)
	if !lang.Valid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidLanguageError(req.Language))
		return
	}

	if err := h.users.UpdateLanguage(r.Context(), user.ID, lang); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"language": string(lang)})
}
