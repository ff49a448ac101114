package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grantdesk/internal/auth"
	"github.com/hitoshi/grantdesk/internal/model"
)

// serveLogged はhをロギングミドルウェアで包んで1リクエスト処理し、出力されたログを返す。
func serveLogged(t *testing.T, h http.HandlerFunc, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	chain := NewRequestIDMiddleware()(NewLoggingMiddleware(logger, nil)(h))
	chain.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	entry := serveLogged(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}, httptest.NewRequest(http.MethodPost, "/api/applications", nil))

	if entry["msg"] != "http_request" || entry["method"] != "POST" || entry["path"] != "/api/applications" {
		t.Errorf("entry = %v", entry)
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v", entry["duration_ms"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("request_id should be logged")
	}
}

func TestLoggingMiddleware_Caller(t *testing.T) {
	tests := []struct {
		name       string
		ac         *auth.AuthorizationContext
		capability string
		userID     any
	}{
		{"anonymous", auth.Anonymous(), "anonymous", nil},
		{"degraded", auth.Degraded(&model.ExternalIdentity{Subject: "ext-9"}), "degraded-authenticated", nil},
		{"member", auth.Resolved(&model.ExternalIdentity{Subject: "ext-1"}, &model.User{ID: 123, Role: model.RoleUser}), "authenticated", float64(123)},
		{"admin", auth.Resolved(&model.ExternalIdentity{Subject: "ext-2"}, &model.User{ID: 1, Role: model.RoleAdmin}), "administrator", float64(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/grants", nil)
			req = req.WithContext(auth.WithAuthorization(req.Context(), tt.ac))
			entry := serveLogged(t, func(w http.ResponseWriter, _ *http.Request) {}, req)

			if entry["capability"] != tt.capability {
				t.Errorf("capability = %v, want %s", entry["capability"], tt.capability)
			}
			if entry["user_id"] != tt.userID {
				t.Errorf("user_id = %v, want %v", entry["user_id"], tt.userID)
			}
		})
	}
}

func TestLoggingMiddleware_LevelByStatusClass(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}
	for _, tt := range tests {
		entry := serveLogged(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))

		if entry["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %s", tt.status, entry["level"], tt.level)
		}
	}
}

func TestLoggingMiddleware_ImplicitOK(t *testing.T) {
	entry := serveLogged(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}

type statusRecorderFunc func(code int)

func (f statusRecorderFunc) RecordHTTPStatus(code int) { f(code) }

func TestLoggingMiddleware_RecordsStatusMetric(t *testing.T) {
	var got []int
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	handler := NewLoggingMiddleware(logger, statusRecorderFunc(func(code int) {
		got = append(got, code)
	}))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))

	if len(got) != 1 || got[0] != http.StatusForbidden {
		t.Errorf("recorded statuses = %v, want [403]", got)
	}
}

func TestLoggingMiddleware_RouteAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger, nil))
	r.Get("/api/grants/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":42}`))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/grants/42", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["route"] != "/api/grants/{id}" {
		t.Errorf("route = %v, want /api/grants/{id}", entry["route"])
	}
	if entry["path"] != "/api/grants/42" {
		t.Errorf("path = %v", entry["path"])
	}
	if entry["bytes"] != float64(len(`{"id":42}`)) {
		t.Errorf("bytes = %v", entry["bytes"])
	}
}
