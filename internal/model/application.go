package model

import "time"

// ApplicationStatus は申請の状態を表す。
type ApplicationStatus string

const (
	ApplicationStatusDraft     ApplicationStatus = "draft"
	ApplicationStatusInReview  ApplicationStatus = "in_review"
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusAwarded   ApplicationStatus = "awarded"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

// Valid は定義済みの状態かを判定する。
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusDraft, ApplicationStatusInReview, ApplicationStatusSubmitted,
		ApplicationStatusAwarded, ApplicationStatusRejected, ApplicationStatusWithdrawn:
		return true
	}
	return false
}

// Application は公募に対する申請を表す。
type Application struct {
	ID                  int64
	GrantOpportunityID  int64
	ProjectTitle        string
	Status              ApplicationStatus
	RequestedAmount     *int64
	CoFinancingAmount   *int64
	ProjectStartDate    *time.Time
	ProjectEndDate      *time.Time
	TargetBeneficiaries string
	AssignedToUserID    *int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ApplicationFilter は申請一覧の絞り込み条件。
type ApplicationFilter struct {
	Status             ApplicationStatus
	GrantOpportunityID int64
	AssignedToUserID   int64
}
