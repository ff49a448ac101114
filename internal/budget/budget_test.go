package budget

import (
	"slices"
	"strings"
	"testing"
)

func TestTemplate(t *testing.T) {
	tests := []struct {
		typ        TemplateType
		categories int
		first      string
	}{
		{TemplateBasic, 4, "Personnel"},
		{TemplateDetailed, 6, "Human Resources"},
		{TemplateEUStandard, 6, "1. Human Resources"},
	}
	for _, tt := range tests {
		got, ok := Template(tt.typ)
		if !ok {
			t.Fatalf("%s: template missing", tt.typ)
		}
		if len(got) != tt.categories || got[0].Name != tt.first {
			t.Errorf("%s: %d categories starting with %q", tt.typ, len(got), got[0].Name)
		}
		for _, c := range got {
			if len(c.Subcategories) == 0 {
				t.Errorf("%s/%s has no subcategories", tt.typ, c.Name)
			}
		}
	}

	if _, ok := Template("custom"); ok {
		t.Error("unknown template type should not be found")
	}
}

func TestTemplate_ReturnsCopy(t *testing.T) {
	a, _ := Template(TemplateBasic)
	a[0].Name = "changed"
	a[0].Subcategories[0] = "changed"

	b, _ := Template(TemplateBasic)
	if b[0].Name != "Personnel" || b[0].Subcategories[0] != "Salaries" {
		t.Errorf("template was mutated through a previous result: %+v", b[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		valid    bool
		total    float64
		issues   []string
		warnings []string
	}{
		{
			name: "balanced budget",
			in: Input{
				Items:       []Item{{"Personnel", 40000}, {"Operations", 35000}, {"Program Costs", 25000}},
				TotalBudget: 100000,
			},
			valid: true,
			total: 100000,
		},
		{
			name: "rounding within a cent",
			in: Input{
				Items:       []Item{{"Human Resources", 300.005}, {"Travel", 699.99}},
				TotalBudget: 1000,
			},
			valid: true,
			total: 999.995,
		},
		{
			name: "totals mismatch",
			in: Input{
				Items:       []Item{{"Personnel", 5000}, {"Travel", 4000}},
				TotalBudget: 10000,
			},
			total:  9000,
			issues: []string{"Budget total mismatch: 9000 vs 10000"},
		},
		{
			name: "personnel share too high",
			in: Input{
				Items:       []Item{{"1. Human Resources", 8000}, {"Travel", 2000}},
				TotalBudget: 10000,
			},
			valid:    true,
			total:    10000,
			warnings: []string{"Personnel costs are 80.0% of total budget - consider if this is appropriate"},
		},
		{
			name: "personnel share too low",
			in: Input{
				Items:       []Item{{"personnel", 1500}, {"Equipment", 8500}},
				TotalBudget: 10000,
			},
			valid:    true,
			total:    10000,
			warnings: []string{"Personnel costs are only 15.0% - ensure adequate staffing"},
		},
		{
			name: "low co-financing",
			in: Input{
				Items:               []Item{{"Personnel", 5000}, {"Operations", 5000}},
				TotalBudget:         10000,
				CoFinancingRequired: 500,
			},
			valid:    true,
			total:    10000,
			warnings: []string{"Co-financing is 5.0% - some donors require minimum 10-20%"},
		},
		{
			name: "sufficient co-financing",
			in: Input{
				Items:               []Item{{"Personnel", 5000}, {"Operations", 5000}},
				TotalBudget:         10000,
				CoFinancingRequired: 2000,
			},
			valid: true,
			total: 10000,
		},
		{
			name: "negative amount",
			in: Input{
				Items:       []Item{{"Personnel", 6000}, {"Refund", -1000}, {"Operations", 5000}},
				TotalBudget: 10000,
			},
			total:  10000,
			issues: []string{"Item 2 (Refund) has a negative amount"},
		},
		{
			name:   "zero total",
			in:     Input{TotalBudget: 0},
			issues: []string{"Total budget must be greater than zero"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.in)

			if got.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (issues %v)", got.Valid, tt.valid, got.Issues)
			}
			if diff := got.CalculatedTotal - tt.total; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("CalculatedTotal = %v, want %v", got.CalculatedTotal, tt.total)
			}
			if !slices.Equal(got.Issues, nonNil(tt.issues)) {
				t.Errorf("Issues = %q, want %q", got.Issues, tt.issues)
			}
			if !slices.Equal(got.Warnings, nonNil(tt.warnings)) {
				t.Errorf("Warnings = %q, want %q", got.Warnings, tt.warnings)
			}
		})
	}
}

func TestValidate_EmptyListsAreNotNil(t *testing.T) {
	got := Validate(Input{Items: []Item{{"Personnel", 50}, {"Other", 50}}, TotalBudget: 100})
	if got.Issues == nil || got.Warnings == nil {
		t.Errorf("Issues/Warnings should be empty slices, got %#v / %#v", got.Issues, got.Warnings)
	}
}

func TestValidate_PersonnelMatchesCaseInsensitively(t *testing.T) {
	for _, category := range []string{"PERSONNEL", "Human resources", "1. Human Resources", "personnel (local)"} {
		got := Validate(Input{Items: []Item{{category, 90}, {"Other", 10}}, TotalBudget: 100})
		if len(got.Warnings) != 1 || !strings.HasPrefix(got.Warnings[0], "Personnel costs are 90.0%") {
			t.Errorf("%q: warnings = %q", category, got.Warnings)
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
