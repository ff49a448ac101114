package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/grantdesk/internal/drive"
	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/report"
)

type gateCall struct {
	requirement string
	reason      string
}

// recordingMetrics はRouterMetricsの記録内容を保持する。
type recordingMetrics struct {
	rejections []gateCall
	statuses   []int
}

func (m *recordingMetrics) RecordGateRejection(requirement, reason string) {
	m.rejections = append(m.rejections, gateCall{requirement, reason})
}
func (m *recordingMetrics) RecordHTTPStatus(code int) { m.statuses = append(m.statuses, code) }

// newTestRouter はすべての依存を空の結果を返すモックで構成したルーターを返す。
func newTestRouter(t *testing.T, metrics RouterMetrics) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	grant := &model.GrantOpportunity{ID: 3, FundingSource: "EU", ProgramTitle: "Erasmus+", Status: model.GrantStatusMonitoring}

	return NewRouter(&RouterDeps{
		ContextBuilder:     testBuilder,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimiter:        rl,
		Metrics:            metrics,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		Users: &mockUserRepo{
			listFn:     func(context.Context) ([]*model.User, error) { return []*model.User{memberUser, adminUser}, nil },
			findByIDFn: func(context.Context, int64) (*model.User, error) { return memberUser, nil },
		},
		Grants: &mockGrantRepo{
			findByIDFn:     func(context.Context, int64) (*model.GrantOpportunity, error) { return grant, nil },
			listFn:         func(context.Context, model.GrantFilter) ([]*model.GrantOpportunity, error) { return nil, nil },
			listUpcomingFn: func(context.Context, time.Time, time.Time) ([]*model.GrantOpportunity, error) { return nil, nil },
			createFn:       func(_ context.Context, g *model.GrantOpportunity) error { g.ID = 4; return nil },
			updateFn:       func(context.Context, *model.GrantOpportunity) (bool, error) { return true, nil },
			deleteFn:       func(context.Context, int64) (bool, error) { return true, nil },
		},
		Applications: &mockApplicationRepo{
			listFn: func(context.Context, model.ApplicationFilter) ([]*model.Application, error) { return nil, nil },
		},
		Documents: &mockDocumentRepo{
			listFn: func(context.Context, model.DocumentFilter) ([]*model.Document, error) { return nil, nil },
		},
		Notifications: &mockNotificationRepo{
			listByUserFn: func(context.Context, int64, bool) ([]*model.Notification, error) { return nil, nil },
		},
		Organizations: &mockOrganizationRepo{
			findByUserFn: func(context.Context, int64) (*model.OrganizationProfile, error) { return nil, nil },
		},
		UserService: &mockUserService{
			updateLanguageFn: func(context.Context, int64, model.Language) error { return nil },
			changeRoleFn:     func(context.Context, int64, int64, model.Role) error { return nil },
		},
		DriveService: &mockDriveService{
			statusFn: func(context.Context, int64) (bool, error) { return false, nil },
			listFilesFn: func(context.Context, int64, string, string) (*drive.FileList, error) {
				return &drive.FileList{}, nil
			},
		},
		ReportService: &mockReportService{
			listFn: func(context.Context, int64) ([]*model.ImpactReport, error) { return nil, nil },
			generateFn: func(context.Context, *model.User, report.GenerateRequest) (*model.ImpactReport, error) {
				return &model.ImpactReport{ID: 1}, nil
			},
		},
	})
}

func doRequest(h http.Handler, method, path, as, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if as != "" {
		req.Header.Set("X-Test-As", as)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_CapabilityMatrix(t *testing.T) {
	router := newTestRouter(t, nil)

	routes := []struct {
		name   string
		method string
		path   string
		body   string
		// 呼び出し元ごとの期待ステータス
		anonymous, degraded, member, admin int
	}{
		{"health", http.MethodGet, "/health", "", 200, 200, 200, 200},
		{"me", http.MethodGet, "/api/auth/me", "", 200, 200, 200, 200},
		{"list grants", http.MethodGet, "/api/grants", "", 401, 401, 200, 200},
		{"get grant", http.MethodGet, "/api/grants/3", "", 401, 401, 200, 200},
		{"list applications", http.MethodGet, "/api/applications", "", 401, 401, 200, 200},
		{"list documents", http.MethodGet, "/api/documents", "", 401, 401, 200, 200},
		{"list notifications", http.MethodGet, "/api/notifications", "", 401, 401, 200, 200},
		{"drive status", http.MethodGet, "/api/drive/status", "", 401, 401, 200, 200},
		{"list reports", http.MethodGet, "/api/reports", "", 401, 401, 200, 200},
		{"update language", http.MethodPut, "/api/auth/language", `{"language":"es"}`, 401, 401, 200, 200},
		{"budget template", http.MethodGet, "/api/budget/templates/basic", "", 401, 401, 200, 200},
		{"validate budget", http.MethodPost, "/api/budget/validate", `{"budget_items":[],"total_budget":1}`, 401, 401, 200, 200},
		{"organization profile", http.MethodGet, "/api/organization/profile", "", 401, 401, 200, 200},
		{"delete grant", http.MethodDelete, "/api/grants/3", "", 401, 401, 403, 204},
		{"list users", http.MethodGet, "/api/admin/users", "", 401, 401, 403, 200},
		{"change role", http.MethodPut, "/api/admin/users/10/role", `{"role":"admin"}`, 401, 401, 403, 200},
	}

	for _, rt := range routes {
		for _, caller := range []struct {
			as   string
			want int
		}{
			{"", rt.anonymous},
			{"degraded", rt.degraded},
			{"member", rt.member},
			{"admin", rt.admin},
		} {
			name := caller.as
			if name == "" {
				name = "anonymous"
			}
			t.Run(rt.name+"/"+name, func(t *testing.T) {
				w := doRequest(router, rt.method, rt.path, caller.as, rt.body)
				if w.Code != caller.want {
					t.Errorf("%s %s as %s: status = %d, want %d (body %s)",
						rt.method, rt.path, name, w.Code, caller.want, w.Body.String())
				}
			})
		}
	}
}

func TestRouter_RejectionsDoNotRevealCause(t *testing.T) {
	router := newTestRouter(t, nil)

	anon := doRequest(router, http.MethodGet, "/api/grants", "", "")
	degraded := doRequest(router, http.MethodGet, "/api/grants", "degraded", "")

	if anon.Code != http.StatusUnauthorized || degraded.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d / %d, want 401 / 401", anon.Code, degraded.Code)
	}
	if anon.Body.String() != degraded.Body.String() {
		t.Errorf("anonymous and degraded rejections differ:\n%s\n%s", anon.Body.String(), degraded.Body.String())
	}
	if code := decodeErrorCode(t, anon); code != model.ErrCodeUnauthenticated {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUnauthenticated)
	}

	forbidden := doRequest(router, http.MethodGet, "/api/admin/users", "member", "")
	if code := decodeErrorCode(t, forbidden); code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", code, model.ErrCodeForbidden)
	}
}

func TestRouter_RecordsGateRejections(t *testing.T) {
	metrics := &recordingMetrics{}
	router := newTestRouter(t, metrics)

	doRequest(router, http.MethodGet, "/api/grants", "degraded", "")
	doRequest(router, http.MethodGet, "/api/admin/users", "member", "")
	doRequest(router, http.MethodGet, "/health", "", "")

	want := []gateCall{
		{"authenticated", "unauthorized"},
		{"administrator", "forbidden"},
	}
	if len(metrics.rejections) != len(want) {
		t.Fatalf("rejections = %v, want %v", metrics.rejections, want)
	}
	for i := range want {
		if metrics.rejections[i] != want[i] {
			t.Errorf("rejection[%d] = %v, want %v", i, metrics.rejections[i], want[i])
		}
	}
	if len(metrics.statuses) != 3 {
		t.Errorf("recorded %d statuses, want 3", len(metrics.statuses))
	}
}

func TestRouter_HealthWithoutDatabase(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(router, http.MethodGet, "/health", "", "")
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["database"] != "unconfigured" {
		t.Errorf("body = %v, want status ok and database unconfigured", body)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doRequest(router, http.MethodGet, "/health", "", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
