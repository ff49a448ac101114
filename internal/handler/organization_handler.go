package handler

import (
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// OrganizationHandler は団体プロフィールのHTTPハンドラー。
type OrganizationHandler struct {
	organizations repository.OrganizationRepository
	now           func() time.Time
}

// NewOrganizationHandler はOrganizationHandlerを生成する。
func NewOrganizationHandler(organizations repository.OrganizationRepository) *OrganizationHandler {
	return &OrganizationHandler{organizations: organizations, now: time.Now}
}

type organizationProfile struct {
	OrganizationName    string `json:"organization_name"`
	LegalName           string `json:"legal_name,omitempty"`
	TaxID               string `json:"tax_id,omitempty"`
	RegistrationNumber  string `json:"registration_number,omitempty"`
	FoundedYear         *int   `json:"founded_year,omitempty"`
	OrganizationType    string `json:"organization_type,omitempty"`
	MissionStatement    string `json:"mission_statement,omitempty"`
	VisionStatement     string `json:"vision_statement,omitempty"`
	Description         string `json:"description,omitempty"`
	ThematicAreas       string `json:"thematic_areas,omitempty"`
	GeographicScope     string `json:"geographic_scope,omitempty"`
	TargetBeneficiaries string `json:"target_beneficiaries,omitempty"`
	Address             string `json:"address,omitempty"`
	City                string `json:"city,omitempty"`
	Country             string `json:"country,omitempty"`
	PostalCode          string `json:"postal_code,omitempty"`
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email,omitempty"`
	Website             string `json:"website,omitempty"`
	StaffCount          *int   `json:"staff_count,omitempty"`
	VolunteerCount      *int   `json:"volunteer_count,omitempty"`
	AnnualBudget        *int64 `json:"annual_budget,omitempty"`
}

type organizationResponse struct {
	ID int64 `json:"id"`
	organizationProfile
	UpdatedAt time.Time `json:"updated_at"`
}

// 各カラムの最大文字数
var organizationFieldLimits = []struct {
	name  string
	value func(*organizationProfile) string
	max   int
}{
	{"organization_name", func(p *organizationProfile) string { return p.OrganizationName }, 500},
	{"legal_name", func(p *organizationProfile) string { return p.LegalName }, 500},
	{"tax_id", func(p *organizationProfile) string { return p.TaxID }, 100},
	{"registration_number", func(p *organizationProfile) string { return p.RegistrationNumber }, 100},
	{"organization_type", func(p *organizationProfile) string { return p.OrganizationType }, 100},
	{"city", func(p *organizationProfile) string { return p.City }, 255},
	{"country", func(p *organizationProfile) string { return p.Country }, 100},
	{"postal_code", func(p *organizationProfile) string { return p.PostalCode }, 20},
	{"phone", func(p *organizationProfile) string { return p.Phone }, 50},
	{"email", func(p *organizationProfile) string { return p.Email }, 320},
	{"website", func(p *organizationProfile) string { return p.Website }, 500},
}

func (req *organizationProfile) validate(now time.Time) *model.APIError {
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	if req.OrganizationName == "" {
		return model.NewInvalidRequestError("organization_name is required")
	}
	for _, f := range organizationFieldLimits {
		if utf8.RuneCountInString(f.value(req)) > f.max {
			return model.NewInvalidRequestError(f.name + " is too long")
		}
	}
	switch {
	case req.FoundedYear != nil && (*req.FoundedYear < 1800 || *req.FoundedYear > now.Year()):
		return model.NewInvalidRequestError("founded_year is out of range")
	case req.StaffCount != nil && *req.StaffCount < 0,
		req.VolunteerCount != nil && *req.VolunteerCount < 0,
		req.AnnualBudget != nil && *req.AnnualBudget < 0:
		return model.NewInvalidRequestError("counts and annual_budget must not be negative")
	case req.Website != "" && !strings.HasPrefix(req.Website, "https://") && !strings.HasPrefix(req.Website, "http://"):
		return model.NewInvalidRequestError("website must be an http(s) URL")
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return model.NewInvalidRequestError("email is not a valid address")
		}
	}
	return nil
}

func (req *organizationProfile) toModel(userID int64) *model.OrganizationProfile {
	return &model.OrganizationProfile{
		UserID:              userID,
		OrganizationName:    req.OrganizationName,
		LegalName:           req.LegalName,
		TaxID:               req.TaxID,
		RegistrationNumber:  req.RegistrationNumber,
		FoundedYear:         req.FoundedYear,
		OrganizationType:    req.OrganizationType,
		MissionStatement:    req.MissionStatement,
		VisionStatement:     req.VisionStatement,
		Description:         req.Description,
		ThematicAreas:       req.ThematicAreas,
		GeographicScope:     req.GeographicScope,
		TargetBeneficiaries: req.TargetBeneficiaries,
		Address:             req.Address,
		City:                req.City,
		Country:             req.Country,
		PostalCode:          req.PostalCode,
		Phone:               req.Phone,
		Email:               req.Email,
		Website:             req.Website,
		StaffCount:          req.StaffCount,
		VolunteerCount:      req.VolunteerCount,
		AnnualBudget:        req.AnnualBudget,
	}
}

func toOrganizationResponse(p *model.OrganizationProfile) organizationResponse {
	return organizationResponse{
		ID: p.ID,
		organizationProfile: organizationProfile{
			OrganizationName:    p.OrganizationName,
			LegalName:           p.LegalName,
			TaxID:               p.TaxID,
			RegistrationNumber:  p.RegistrationNumber,
			FoundedYear:         p.FoundedYear,
			OrganizationType:    p.OrganizationType,
			MissionStatement:    p.MissionStatement,
			VisionStatement:     p.VisionStatement,
			Description:         p.Description,
			ThematicAreas:       p.ThematicAreas,
			GeographicScope:     p.GeographicScope,
			TargetBeneficiaries: p.TargetBeneficiaries,
			Address:             p.Address,
			City:                p.City,
			Country:             p.Country,
			PostalCode:          p.PostalCode,
			Phone:               p.Phone,
			Email:               p.Email,
			Website:             p.Website,
			StaffCount:          p.StaffCount,
			VolunteerCount:      p.VolunteerCount,
			AnnualBudget:        p.AnnualBudget,
		},
		UpdatedAt: p.UpdatedAt,
	}
}

// GetProfile はログイン中ユーザーの団体プロフィールを返す。未登録の場合はnullを返す。
// GET /api/organization/profile
func (h *OrganizationHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	p, err := h.organizations.FindByUser(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationResponse(p))
}

// UpdateProfile はログイン中ユーザーの団体プロフィールを登録または置き換える。
// 新規登録は201、更新は200で応答する。
// PUT /api/organization/profile
func (h *OrganizationHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	var req organizationProfile
	if !decodeJSON(w, r, &req) {
		return
	}
	if apiErr := req.validate(h.now()); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	p := req.toModel(user.ID)
	created, err := h.organizations.Upsert(r.Context(), p)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toOrganizationResponse(p))
}
