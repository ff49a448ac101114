package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grantdesk/internal/auth"
	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// RouterMetrics はルーターが記録するメトリクスのインターフェース。
// metrics.Collectorが実装する。
type RouterMetrics interface {
	middleware.GateRecorder
	middleware.StatusRecorder
}

// UserServiceInterface はユーザー設定とロール変更のインターフェース。
// user.Serviceが実装する。
type UserServiceInterface interface {
	LanguageUpdater
	RoleChanger
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	ContextBuilder     middleware.ContextBuilder
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Metrics            RouterMetrics // nilでもよい
	Logger             *slog.Logger
	HealthChecker      HealthChecker

	// リポジトリ
	Users         repository.UserRepository
	Grants        repository.GrantRepository
	Applications  repository.ApplicationRepository
	Documents     repository.DocumentRepository
	Notifications repository.NotificationRepository
	Organizations repository.OrganizationRepository

	// サービス
	UserService   UserServiceInterface
	DriveService  DriveServiceInterface
	ReportService ReportServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → CORS → Authorization → Logging → RateLimit → RequireCapability
//
// Authorizationはすべてのリクエストで1度だけAuthorizationContextを構築し、拒否はしない。
// 権限の判定はルートグループごとのRequireCapabilityが行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	var gate middleware.GateRecorder
	var status middleware.StatusRecorder
	if deps.Metrics != nil {
		gate, status = deps.Metrics, deps.Metrics
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewAuthorizationMiddleware(deps.ContextBuilder))
	r.Use(middleware.NewLoggingMiddleware(logger, status))

	authHandler := NewAuthHandler(deps.UserService)
	grantHandler := NewGrantHandler(deps.Grants)
	appHandler := NewApplicationHandler(deps.Applications, deps.Grants)
	docHandler := NewDocumentHandler(deps.Documents)
	notifHandler := NewNotificationHandler(deps.Notifications)
	driveHandler := NewDriveHandler(deps.DriveService)
	reportHandler := NewReportHandler(deps.ReportService)
	budgetHandler := NewBudgetHandler()
	orgHandler := NewOrganizationHandler(deps.Organizations)
	adminHandler := NewAdminHandler(deps.Users, deps.Documents, deps.UserService)

	// --- 公開ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCapability(auth.RequirePublic, gate))

		r.Get("/health", Health(deps.HealthChecker))
		r.Get("/api/auth/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.RequireCapability(auth.RequireAuthenticated, gate))

		r.Put("/api/auth/language", authHandler.UpdateLanguage)

		r.Get("/api/grants", grantHandler.List)
		r.Get("/api/grants/upcoming", grantHandler.Upcoming)
		r.Get("/api/grants/{id}", grantHandler.Get)

		r.Get("/api/applications", appHandler.List)
		r.Post("/api/applications", appHandler.Create)
		r.Get("/api/applications/{id}", appHandler.Get)
		r.Put("/api/applications/{id}/status", appHandler.UpdateStatus)

		r.Get("/api/documents", docHandler.List)
		r.Get("/api/documents/expiring", docHandler.Expiring)
		r.Delete("/api/documents/{id}", docHandler.Delete)

		r.Get("/api/notifications", notifHandler.List)
		r.Put("/api/notifications/{id}/read", notifHandler.MarkRead)

		r.Get("/api/drive/auth-url", driveHandler.AuthURL)
		r.Post("/api/drive/callback", driveHandler.Callback)
		r.Get("/api/drive/status", driveHandler.Status)
		r.Delete("/api/drive/connection", driveHandler.Disconnect)
		r.Get("/api/drive/files", driveHandler.Files)
		r.Post("/api/drive/import", driveHandler.Import)

		r.Get("/api/reports", reportHandler.List)
		r.With(deps.RateLimiter.AIMiddleware()).Post("/api/reports", reportHandler.Generate)

		r.Get("/api/budget/templates/{type}", budgetHandler.Template)
		r.Post("/api/budget/validate", budgetHandler.Validate)

		r.Get("/api/organization/profile", orgHandler.GetProfile)
		r.Put("/api/organization/profile", orgHandler.UpdateProfile)
	})

	// --- 管理者ルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.RequireCapability(auth.RequireAdministrator, gate))

		r.Post("/api/grants", grantHandler.Create)
		r.Put("/api/grants/{id}", grantHandler.Update)
		r.Delete("/api/grants/{id}", grantHandler.Delete)

		r.Get("/api/admin/users", adminHandler.ListUsers)
		r.Put("/api/admin/users/{id}/role", adminHandler.UpdateRole)
		r.Get("/api/admin/users/{id}/documents", adminHandler.UserDocuments)
	})

	return r
}
