package model

import "time"

// NotificationType は通知の種類を表す。
type NotificationType string

const (
	NotificationDeadline       NotificationType = "deadline"
	NotificationStatusChange   NotificationType = "status_change"
	NotificationDocumentExpiry NotificationType = "document_expiry"
	NotificationGeneral        NotificationType = "general"
)

// Notification はユーザー宛ての通知を表す。
type Notification struct {
	ID         int64
	UserID     int64
	Type       NotificationType
	Title      string
	Message    string
	EntityType string
	EntityID   *int64
	IsRead     bool
	CreatedAt  time.Time
}

// ImpactReportStatus はインパクトレポートの状態を表す。
type ImpactReportStatus string

const (
	ImpactReportDraft     ImpactReportStatus = "draft"
	ImpactReportReview    ImpactReportStatus = "review"
	ImpactReportFinalized ImpactReportStatus = "finalized"
)

// ImpactReport はAIが生成したインパクトレポートを表す。
type ImpactReport struct {
	ID              int64
	ApplicationID   int64
	Title           string
	ReportType      string
	Content         string // サニタイズ済みHTML
	Status          ImpactReportStatus
	CreatedByUserID int64
	CreatedAt       time.Time
}
