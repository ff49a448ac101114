package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/grantdesk/internal/auth"
	"github.com/hitoshi/grantdesk/internal/drive"
	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/report"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// --- 認可コンテキスト ---

// builderFunc はContextBuilderを関数で実装する。
type builderFunc func(r *http.Request) *auth.AuthorizationContext

func (f builderFunc) Build(r *http.Request) *auth.AuthorizationContext { return f(r) }

var (
	memberUser = &model.User{ID: 10, ExternalSubjectID: "sub-member", Role: model.RoleUser, PreferredLanguage: model.LanguageEnglish, Name: "Member"}
	adminUser  = &model.User{ID: 1, ExternalSubjectID: "sub-admin", Role: model.RoleAdmin, PreferredLanguage: model.LanguageSpanish}
)

// testBuilder はX-Test-Asヘッダーで権限レベルを切り替える。
var testBuilder = builderFunc(func(r *http.Request) *auth.AuthorizationContext {
	switch r.Header.Get("X-Test-As") {
	case "member":
		return auth.Resolved(&model.ExternalIdentity{Subject: memberUser.ExternalSubjectID}, memberUser)
	case "admin":
		return auth.Resolved(&model.ExternalIdentity{Subject: adminUser.ExternalSubjectID}, adminUser)
	case "degraded":
		return auth.Degraded(&model.ExternalIdentity{Subject: "sub-degraded"})
	}
	return auth.Anonymous()
})

// withAuth はハンドラー単体のテスト用にAuthorizationContextを格納したリクエストを返す。
func withAuth(r *http.Request, user *model.User) *http.Request {
	ac := auth.Resolved(&model.ExternalIdentity{Subject: user.ExternalSubjectID}, user)
	return r.WithContext(auth.WithAuthorization(r.Context(), ac))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	return body.Code
}

func int64Ptr(v int64) *int64 { return &v }

// --- リポジトリのモック ---

type mockUserRepo struct {
	repository.UserRepository
	listFn     func(ctx context.Context) ([]*model.User, error)
	findByIDFn func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) { return m.listFn(ctx) }
func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}

type mockGrantRepo struct {
	repository.GrantRepository
	findByIDFn     func(ctx context.Context, id int64) (*model.GrantOpportunity, error)
	listFn         func(ctx context.Context, filter model.GrantFilter) ([]*model.GrantOpportunity, error)
	listUpcomingFn func(ctx context.Context, from, until time.Time) ([]*model.GrantOpportunity, error)
	createFn       func(ctx context.Context, grant *model.GrantOpportunity) error
	updateFn       func(ctx context.Context, grant *model.GrantOpportunity) (bool, error)
	deleteFn       func(ctx context.Context, id int64) (bool, error)
}

func (m *mockGrantRepo) FindByID(ctx context.Context, id int64) (*model.GrantOpportunity, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockGrantRepo) List(ctx context.Context, filter model.GrantFilter) ([]*model.GrantOpportunity, error) {
	return m.listFn(ctx, filter)
}
func (m *mockGrantRepo) ListUpcoming(ctx context.Context, from, until time.Time) ([]*model.GrantOpportunity, error) {
	return m.listUpcomingFn(ctx, from, until)
}
func (m *mockGrantRepo) Create(ctx context.Context, grant *model.GrantOpportunity) error {
	return m.createFn(ctx, grant)
}
func (m *mockGrantRepo) Update(ctx context.Context, grant *model.GrantOpportunity) (bool, error) {
	return m.updateFn(ctx, grant)
}
func (m *mockGrantRepo) Delete(ctx context.Context, id int64) (bool, error) {
	return m.deleteFn(ctx, id)
}

type mockApplicationRepo struct {
	repository.ApplicationRepository
	findByIDFn     func(ctx context.Context, id int64) (*model.Application, error)
	listFn         func(ctx context.Context, filter model.ApplicationFilter) ([]*model.Application, error)
	createFn       func(ctx context.Context, app *model.Application) error
	updateStatusFn func(ctx context.Context, id int64, status model.ApplicationStatus) (bool, error)
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id int64) (*model.Application, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockApplicationRepo) List(ctx context.Context, filter model.ApplicationFilter) ([]*model.Application, error) {
	return m.listFn(ctx, filter)
}
func (m *mockApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	return m.createFn(ctx, app)
}
func (m *mockApplicationRepo) UpdateStatus(ctx context.Context, id int64, status model.ApplicationStatus) (bool, error) {
	return m.updateStatusFn(ctx, id, status)
}

type mockDocumentRepo struct {
	repository.DocumentRepository
	listFn         func(ctx context.Context, filter model.DocumentFilter) ([]*model.Document, error)
	listExpiringFn func(ctx context.Context, from, until time.Time) ([]*model.Document, error)
	deleteOwnedFn  func(ctx context.Context, id, ownerID int64) (bool, error)
}

func (m *mockDocumentRepo) List(ctx context.Context, filter model.DocumentFilter) ([]*model.Document, error) {
	return m.listFn(ctx, filter)
}
func (m *mockDocumentRepo) ListExpiring(ctx context.Context, from, until time.Time) ([]*model.Document, error) {
	return m.listExpiringFn(ctx, from, until)
}
func (m *mockDocumentRepo) DeleteOwned(ctx context.Context, id, ownerID int64) (bool, error) {
	return m.deleteOwnedFn(ctx, id, ownerID)
}

type mockNotificationRepo struct {
	repository.NotificationRepository
	listByUserFn func(ctx context.Context, userID int64, unreadOnly bool) ([]*model.Notification, error)
	markReadFn   func(ctx context.Context, id, userID int64) (bool, error)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*model.Notification, error) {
	return m.listByUserFn(ctx, userID, unreadOnly)
}
func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	return m.markReadFn(ctx, id, userID)
}

type mockOrganizationRepo struct {
	findByUserFn func(ctx context.Context, userID int64) (*model.OrganizationProfile, error)
	upsertFn     func(ctx context.Context, profile *model.OrganizationProfile) (bool, error)
}

var _ repository.OrganizationRepository = (*mockOrganizationRepo)(nil)

func (m *mockOrganizationRepo) FindByUser(ctx context.Context, userID int64) (*model.OrganizationProfile, error) {
	return m.findByUserFn(ctx, userID)
}
func (m *mockOrganizationRepo) Upsert(ctx context.Context, profile *model.OrganizationProfile) (bool, error) {
	return m.upsertFn(ctx, profile)
}

// --- サービスのモック ---

type mockDriveService struct {
	authURLFn        func(ctx context.Context, userID int64) (string, error)
	handleCallbackFn func(ctx context.Context, userID int64, state, code string) error
	statusFn         func(ctx context.Context, userID int64) (bool, error)
	disconnectFn     func(ctx context.Context, userID int64) error
	listFilesFn      func(ctx context.Context, userID int64, query, pageToken string) (*drive.FileList, error)
	importFn         func(ctx context.Context, userID int64, req drive.ImportRequest) (*model.Document, error)
}

var _ DriveServiceInterface = (*mockDriveService)(nil)

func (m *mockDriveService) AuthURL(ctx context.Context, userID int64) (string, error) {
	return m.authURLFn(ctx, userID)
}
func (m *mockDriveService) HandleCallback(ctx context.Context, userID int64, state, code string) error {
	return m.handleCallbackFn(ctx, userID, state, code)
}
func (m *mockDriveService) Status(ctx context.Context, userID int64) (bool, error) {
	return m.statusFn(ctx, userID)
}
func (m *mockDriveService) Disconnect(ctx context.Context, userID int64) error {
	return m.disconnectFn(ctx, userID)
}
func (m *mockDriveService) ListFiles(ctx context.Context, userID int64, query, pageToken string) (*drive.FileList, error) {
	return m.listFilesFn(ctx, userID, query, pageToken)
}
func (m *mockDriveService) Import(ctx context.Context, userID int64, req drive.ImportRequest) (*model.Document, error) {
	return m.importFn(ctx, userID, req)
}

type mockReportService struct {
	generateFn func(ctx context.Context, user *model.User, req report.GenerateRequest) (*model.ImpactReport, error)
	listFn     func(ctx context.Context, userID int64) ([]*model.ImpactReport, error)
}

var _ ReportServiceInterface = (*mockReportService)(nil)

func (m *mockReportService) Generate(ctx context.Context, user *model.User, req report.GenerateRequest) (*model.ImpactReport, error) {
	return m.generateFn(ctx, user, req)
}
func (m *mockReportService) List(ctx context.Context, userID int64) ([]*model.ImpactReport, error) {
	return m.listFn(ctx, userID)
}

type mockUserService struct {
	updateLanguageFn func(ctx context.Context, id int64, lang model.Language) error
	changeRoleFn     func(ctx context.Context, actorID, targetID int64, role model.Role) error
}

var _ UserServiceInterface = (*mockUserService)(nil)

func (m *mockUserService) UpdateLanguage(ctx context.Context, id int64, lang model.Language) error {
	return m.updateLanguageFn(ctx, id, lang)
}
func (m *mockUserService) ChangeRole(ctx context.Context, actorID, targetID int64, role model.Role) error {
	return m.changeRoleFn(ctx, actorID, targetID, role)
}
