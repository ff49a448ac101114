// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/grantdesk/internal/auth"
	"github.com/hitoshi/grantdesk/internal/model"
)

// ContextBuilder はリクエストからAuthorizationContextを構築するインターフェース。
// auth.SessionContextBuilderが実装する。
type ContextBuilder interface {
	Build(r *http.Request) *auth.AuthorizationContext
}

// GateRecorder は権限チェックでの拒否を記録するインターフェース。
type GateRecorder interface {
	RecordGateRejection(requirement, reason string)
}

// NewAuthorizationMiddleware はすべてのリクエストでAuthorizationContextを1度だけ構築し、
// リクエストコンテキストに格納するミドルウェアを返す。
// 認証に失敗してもリクエストは拒否せず、匿名または縮退状態で後続に渡す。
func NewAuthorizationMiddleware(builder ContextBuilder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := builder.Build(r)
			next.ServeHTTP(w, r.WithContext(auth.WithAuthorization(r.Context(), ac)))
		})
	}
}

// RequireCapability はルートに必要な権限を宣言するミドルウェアを返す。
// 要件を満たさない場合は401 UNAUTHENTICATEDまたは403 FORBIDDENを返し、原因は返さない。
// recorderはnilでもよい。
func RequireCapability(req auth.Requirement, recorder GateRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := auth.FromContext(r.Context())
			err := auth.Authorize(req, ac)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			reason := "unauthorized"
			status, apiErr := http.StatusUnauthorized, model.NewUnauthenticatedError()
			if errors.Is(err, auth.ErrForbidden) {
				reason = "forbidden"
				status, apiErr = http.StatusForbidden, model.NewForbiddenError()
			}
			if recorder != nil {
				recorder.RecordGateRejection(req.String(), reason)
			}
			slog.Debug("capability check rejected",
				slog.String("requirement", req.String()),
				slog.String("capability", ac.Capability().String()),
				slog.String("path", r.URL.Path),
			)
			WriteErrorResponse(w, status, apiErr)
		})
	}
}

// CurrentUser はリクエストコンテキストから解決済みのローカルユーザーを取得する。
// RequireCapability(auth.RequireAuthenticated)を通過したリクエストでのみ非nilが保証される。
func CurrentUser(r *http.Request) *model.User {
	return auth.FromContext(r.Context()).User()
}
