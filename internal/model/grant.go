package model

import "time"

// GrantStatus は助成金公募の追跡状態を表す。
type GrantStatus string

const (
	GrantStatusMonitoring GrantStatus = "monitoring"
	GrantStatusPreparing  GrantStatus = "preparing"
	GrantStatusSubmitted  GrantStatus = "submitted"
	GrantStatusAwarded    GrantStatus = "awarded"
	GrantStatusRejected   GrantStatus = "rejected"
	GrantStatusArchived   GrantStatus = "archived"
)

// Valid は定義済みの状態かを判定する。
func (s GrantStatus) Valid() bool {
	switch s {
	case GrantStatusMonitoring, GrantStatusPreparing, GrantStatusSubmitted,
		GrantStatusAwarded, GrantStatusRejected, GrantStatusArchived:
		return true
	}
	return false
}

// GrantOpportunity は資金提供元の助成金公募を表す。
type GrantOpportunity struct {
	ID                    int64
	FundingSource         string
	ProgramTitle          string
	ApplicationDeadline   time.Time
	MinAmount             *int64
	MaxAmount             *int64
	CoFinancingPercentage *int
	EligibilityCriteria   string
	ThematicArea          string
	GeographicScope       string
	Status                GrantStatus
	AssignedToUserID      *int64
	CallDocumentationURL  string
	Notes                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// GrantFilter は公募一覧の絞り込み条件。
type GrantFilter struct {
	Status           GrantStatus
	AssignedToUserID int64
	Limit            int
}
