package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSetupMetricsRoute(t *testing.T) {
	reg := NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthOutcome("store_unavailable")
	c.RecordGateRejection("authenticated", "degraded")

	h := SetupMetricsRoute(reg)

	tests := []struct {
		name     string
		method   string
		path     string
		status   int
		contains []string
	}{
		{
			name:   "metrics",
			method: http.MethodGet,
			path:   "/metrics",
			status: http.StatusOK,
			contains: []string{
				`grantdesk_auth_outcome_total{outcome="store_unavailable"} 1`,
				`grantdesk_gate_rejections_total{reason="degraded",requirement="authenticated"} 1`,
				"go_goroutines",
			},
		},
		{name: "livez", method: http.MethodGet, path: "/livez", status: http.StatusOK, contains: []string{"ok"}},
		{name: "api is not exposed", method: http.MethodGet, path: "/api/grants", status: http.StatusNotFound},
		{name: "metrics is read-only", method: http.MethodPost, path: "/metrics", status: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			for _, s := range tt.contains {
				if !strings.Contains(w.Body.String(), s) {
					t.Errorf("body missing %q", s)
				}
			}
		})
	}
}
