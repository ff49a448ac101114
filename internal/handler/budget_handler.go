package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/grantdesk/internal/budget"
	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
)

// maxBudgetItems は1回の検証で受け付ける明細行の上限。
const maxBudgetItems = 500

// BudgetHandler は予算テンプレートと予算検証のHTTPハンドラー。
type BudgetHandler struct{}

// NewBudgetHandler はBudgetHandlerを生成する。
func NewBudgetHandler() *BudgetHandler {
	return &BudgetHandler{}
}

type budgetCategoryResponse struct {
	Category      string   `json:"category"`
	Subcategories []string `json:"subcategories"`
}

// Template は種類に対応する予算テンプレートを返す。
// GET /api/budget/templates/{type}
func (h *BudgetHandler) Template(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	categories, ok := budget.Template(budget.TemplateType(typ))
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("type must be one of basic, detailed, eu_standard"))
		return
	}

	out := make([]budgetCategoryResponse, len(categories))
	for i, c := range categories {
		out[i] = budgetCategoryResponse{Category: c.Name, Subcategories: c.Subcategories}
	}
	writeJSON(w, http.StatusOK, out)
}

type validateBudgetRequest struct {
	BudgetItems []struct {
		Category string   `json:"category"`
		Amount   *float64 `json:"amount"`
	} `json:"budget_items"`
	TotalBudget         *float64 `json:"total_budget"`
	CoFinancingRequired float64  `json:"co_financing_required"`
}

type validateBudgetResponse struct {
	Valid           bool     `json:"valid"`
	Issues          []string `json:"issues"`
	Warnings        []string `json:"warnings"`
	CalculatedTotal float64  `json:"calculated_total"`
}

// Validate は予算明細の合計と配分を検証する。
// 合計の不一致はissues、配分の偏りはwarningsとして返し、いずれも200で応答する。
// POST /api/budget/validate
func (h *BudgetHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateBudgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TotalBudget == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("total_budget is required"))
		return
	}
	if len(req.BudgetItems) > maxBudgetItems {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("too many budget_items"))
		return
	}
	if req.CoFinancingRequired < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("co_financing_required must not be negative"))
		return
	}

	in := budget.Input{
		Items:               make([]budget.Item, len(req.BudgetItems)),
		TotalBudget:         *req.TotalBudget,
		CoFinancingRequired: req.CoFinancingRequired,
	}
	for i, item := range req.BudgetItems {
		if item.Category == "" || item.Amount == nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("each budget item needs category and amount"))
			return
		}
		in.Items[i] = budget.Item{Category: item.Category, Amount: *item.Amount}
	}

	res := budget.Validate(in)
	writeJSON(w, http.StatusOK, validateBudgetResponse{
		Valid:           res.Valid,
		Issues:          res.Issues,
		Warnings:        res.Warnings,
		CalculatedTotal: res.CalculatedTotal,
	})
}
