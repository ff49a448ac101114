// Package budget は申請予算のテンプレートと整合性チェックを提供する。
// 永続化は行わず、入力だけから結果を計算する。
package budget

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TemplateType は予算テンプレートの種類。
type TemplateType string

const (
	TemplateBasic      TemplateType = "basic"
	TemplateDetailed   TemplateType = "detailed"
	TemplateEUStandard TemplateType = "eu_standard"
)

// Category は予算テンプレートの費目とその内訳。
type Category struct {
	Name          string
	Subcategories []string
}

var templates = map[TemplateType][]Category{
	TemplateBasic: {
		{"Personnel", []string{"Salaries", "Benefits"}},
		{"Operations", []string{"Rent", "Utilities", "Supplies"}},
		{"Program Costs", []string{"Activities", "Materials"}},
		{"Other", []string{"Contingency"}},
	},
	TemplateDetailed: {
		{"Human Resources", []string{"Project Manager", "Staff", "Consultants", "Benefits"}},
		{"Equipment", []string{"Purchase", "Rental", "Maintenance"}},
		{"Travel", []string{"Domestic", "International", "Per Diem"}},
		{"Operations", []string{"Office", "Communications", "Insurance"}},
		{"Program Activities", []string{"Training", "Events", "Materials"}},
		{"Indirect Costs", []string{"Administration", "Overhead"}},
	},
	TemplateEUStandard: {
		{"1. Human Resources", []string{"Salaries", "Social Charges"}},
		{"2. Travel and Subsistence", []string{"Travel", "Accommodation", "Per Diem"}},
		{"3. Equipment and Supplies", []string{"Equipment", "Supplies"}},
		{"4. Local Office", []string{"Rent", "Utilities", "Communications"}},
		{"5. Other Costs", []string{"Publications", "Visibility"}},
		{"6. Other", []string{"Audit", "Evaluation"}},
	},
}

// Template は種類に対応するテンプレートのコピーを返す。未定義の種類ならfalseを返す。
func Template(t TemplateType) ([]Category, bool) {
	src, ok := templates[t]
	if !ok {
		return nil, false
	}
	out := make([]Category, len(src))
	for i, c := range src {
		out[i] = Category{Name: c.Name, Subcategories: append([]string(nil), c.Subcategories...)}
	}
	return out, true
}

// 整合性チェックの閾値
const (
	totalTolerance       = 0.01
	personnelHighPercent = 70.0
	personnelLowPercent  = 20.0
	coFinancingMinimum   = 10.0
)

// Item は予算明細の1行。
type Item struct {
	Category string
	Amount   float64
}

// Input はValidateの入力。CoFinancingRequiredが0の場合は共同出資のチェックを行わない。
type Input struct {
	Items               []Item
	TotalBudget         float64
	CoFinancingRequired float64
}

// Result はValidateの結果。Issuesが空のときだけValidがtrueになる。
// Warningsは提出を妨げない注意事項。
type Result struct {
	Valid           bool
	Issues          []string
	Warnings        []string
	CalculatedTotal float64
}

// Validate は明細の合計と申告総額の一致、人件費比率、共同出資比率を確認する。
// 費目名に "personnel" または "human" を含む明細を人件費として扱う。
func Validate(in Input) Result {
	res := Result{Issues: []string{}, Warnings: []string{}}

	var personnel float64
	for i, item := range in.Items {
		if item.Amount < 0 {
			res.Issues = append(res.Issues, fmt.Sprintf("Item %d (%s) has a negative amount", i+1, item.Category))
		}
		res.CalculatedTotal += item.Amount
		if isPersonnel(item.Category) {
			personnel += item.Amount
		}
	}

	if math.Abs(res.CalculatedTotal-in.TotalBudget) > totalTolerance {
		res.Issues = append(res.Issues, fmt.Sprintf("Budget total mismatch: %s vs %s",
			formatAmount(res.CalculatedTotal), formatAmount(in.TotalBudget)))
	}

	// 総額が0以下だと比率を計算できない
	if in.TotalBudget <= 0 {
		res.Issues = append(res.Issues, "Total budget must be greater than zero")
		return res
	}

	share := personnel / in.TotalBudget * 100
	switch {
	case share > personnelHighPercent:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Personnel costs are %.1f%% of total budget - consider if this is appropriate", share))
	case share < personnelLowPercent:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Personnel costs are only %.1f%% - ensure adequate staffing", share))
	}

	if in.CoFinancingRequired > 0 {
		if co := in.CoFinancingRequired / in.TotalBudget * 100; co < coFinancingMinimum {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("Co-financing is %.1f%% - some donors require minimum 10-20%%", co))
		}
	}

	res.Valid = len(res.Issues) == 0
	return res
}

func isPersonnel(category string) bool {
	c := strings.ToLower(category)
	return strings.Contains(c, "personnel") || strings.Contains(c, "human")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
