package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func budgetRouter() http.Handler {
	h := NewBudgetHandler()
	r := chi.NewRouter()
	r.Get("/api/budget/templates/{type}", h.Template)
	r.Post("/api/budget/validate", h.Validate)
	return r
}

func TestBudgetHandler_Template(t *testing.T) {
	w := httptest.NewRecorder()
	budgetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/budget/templates/eu_standard", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var body []budgetCategoryResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 6 || body[1].Category != "2. Travel and Subsistence" || len(body[1].Subcategories) != 3 {
		t.Errorf("body = %+v", body)
	}
}

func TestBudgetHandler_Template_UnknownType(t *testing.T) {
	w := httptest.NewRecorder()
	budgetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/budget/templates/lavish", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "INVALID_REQUEST" {
		t.Errorf("code = %q", code)
	}
}

func TestBudgetHandler_Validate(t *testing.T) {
	body := `{
		"budget_items": [
			{"category": "Personnel", "amount": 7500},
			{"category": "Operations", "amount": 1500}
		],
		"total_budget": 10000,
		"co_financing_required": 500
	}`
	w := httptest.NewRecorder()
	budgetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/budget/validate", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var got validateBudgetResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Valid || got.CalculatedTotal != 9000 {
		t.Errorf("valid = %v, calculated_total = %v", got.Valid, got.CalculatedTotal)
	}
	if len(got.Issues) != 1 || got.Issues[0] != "Budget total mismatch: 9000 vs 10000" {
		t.Errorf("issues = %q", got.Issues)
	}
	// 人件費75%と共同出資5%の2件
	if len(got.Warnings) != 2 {
		t.Errorf("warnings = %q, want 2", got.Warnings)
	}
}

func TestBudgetHandler_Validate_CleanBudgetHasEmptyLists(t *testing.T) {
	body := `{"budget_items":[{"category":"Personnel","amount":50},{"category":"Travel","amount":50}],"total_budget":100}`
	w := httptest.NewRecorder()
	budgetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/budget/validate", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, `"issues":[]`) || !strings.Contains(got, `"warnings":[]`) {
		t.Errorf("body = %s, want empty issues and warnings arrays", got)
	}
}

func TestBudgetHandler_Validate_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing total", `{"budget_items":[{"category":"Personnel","amount":1}]}`},
		{"item without amount", `{"budget_items":[{"category":"Personnel"}],"total_budget":1}`},
		{"item without category", `{"budget_items":[{"amount":1}],"total_budget":1}`},
		{"negative co-financing", `{"budget_items":[],"total_budget":1,"co_financing_required":-5}`},
		{"unknown field", `{"budget_items":[],"total_budget":1,"currency":"EUR"}`},
		{"too many items", `{"total_budget":1,"budget_items":[` +
			strings.TrimSuffix(strings.Repeat(`{"category":"x","amount":0},`, maxBudgetItems+1), ",") + `]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			budgetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/budget/validate", strings.NewReader(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}
