package model

import "time"

// OrganizationProfile はユーザーが管理する団体の基本情報を表す。
// 1ユーザーにつき1件で、申請書やレポートの作成時に参照する。
type OrganizationProfile struct {
	ID                  int64
	UserID              int64
	OrganizationName    string
	LegalName           string
	TaxID               string
	RegistrationNumber  string
	FoundedYear         *int
	OrganizationType    string
	MissionStatement    string
	VisionStatement     string
	Description         string
	ThematicAreas       string
	GeographicScope     string
	TargetBeneficiaries string
	Address             string
	City                string
	Country             string
	PostalCode          string
	Phone               string
	Email               string
	Website             string
	StaffCount          *int
	VolunteerCount      *int
	AnnualBudget        *int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
