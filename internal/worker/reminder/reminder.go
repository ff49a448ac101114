// Package reminder は締切と文書有効期限のリマインダー通知を作成する日次ジョブを提供する。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// Recorder は作成した通知の件数を記録するインターフェース。
type Recorder interface {
	RecordNotificationsCreated(notificationType string, count int)
}

// Job は締切が近い公募の担当者と、有効期限が近い文書のアップロード者に通知を作成する。
// 同じ対象への未読の通知が既にある場合は作成しないため、日に何度実行してもよい。
type Job struct {
	grants        repository.GrantRepository
	documents     repository.DocumentRepository
	notifications repository.NotificationRepository
	recorder      Recorder
	logger        *slog.Logger
	DaysAhead     int
	now           func() time.Time
}

// NewJob はJobを生成する。daysAheadが0以下の場合は30日とする。
func NewJob(
	grants repository.GrantRepository,
	documents repository.DocumentRepository,
	notifications repository.NotificationRepository,
	recorder Recorder,
	logger *slog.Logger,
	daysAhead int,
) *Job {
	if daysAhead <= 0 {
		daysAhead = 30
	}
	return &Job{
		grants:        grants,
		documents:     documents,
		notifications: notifications,
		recorder:      recorder,
		logger:        logger,
		DaysAhead:     daysAhead,
		now:           time.Now,
	}
}

// Result はジョブ1回分の作成件数。
type Result struct {
	Deadlines      int
	DocumentExpiry int
}

// Run はリマインダー通知を作成する。
// 片方の処理が失敗してももう片方は実行し、最初のエラーを返す。
func (j *Job) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	now := j.now()
	until := now.AddDate(0, 0, j.DaysAhead)

	var res Result
	var firstErr error

	n, err := j.remindDeadlines(ctx, now, until)
	res.Deadlines = n
	if err != nil {
		firstErr = err
	}

	n, err = j.remindExpiringDocuments(ctx, now, until)
	res.DocumentExpiry = n
	if err != nil && firstErr == nil {
		firstErr = err
	}

	j.recorder.RecordNotificationsCreated(string(model.NotificationDeadline), res.Deadlines)
	j.recorder.RecordNotificationsCreated(string(model.NotificationDocumentExpiry), res.DocumentExpiry)

	j.logger.Info("reminder job completed",
		slog.Int("deadline_notifications", res.Deadlines),
		slog.Int("document_expiry_notifications", res.DocumentExpiry),
		slog.Int("days_ahead", j.DaysAhead),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, firstErr
}

func (j *Job) remindDeadlines(ctx context.Context, now, until time.Time) (int, error) {
	grants, err := j.grants.ListUpcoming(ctx, now, until)
	if err != nil {
		j.logger.Error("failed to list upcoming deadlines", slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to list upcoming grants: %w", err)
	}

	created := 0
	for _, g := range grants {
		if g.AssignedToUserID == nil {
			continue
		}
		id := g.ID
		ok, err := j.notifications.CreateIfAbsent(ctx, &model.Notification{
			UserID:     *g.AssignedToUserID,
			Type:       model.NotificationDeadline,
			Title:      "Deadline approaching: " + g.ProgramTitle,
			Message:    fmt.Sprintf("%s closes on %s (%s).", g.ProgramTitle, g.ApplicationDeadline.Format(time.DateOnly), daysLeft(now, g.ApplicationDeadline)),
			EntityType: "grant_opportunity",
			EntityID:   &id,
		})
		if err != nil {
			return created, fmt.Errorf("failed to create deadline notification: %w", err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (j *Job) remindExpiringDocuments(ctx context.Context, now, until time.Time) (int, error) {
	docs, err := j.documents.ListExpiring(ctx, now, until)
	if err != nil {
		j.logger.Error("failed to list expiring documents", slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to list expiring documents: %w", err)
	}

	created := 0
	for _, d := range docs {
		if d.UploadedByUserID == nil || d.ExpirationDate == nil {
			continue
		}
		id := d.ID
		ok, err := j.notifications.CreateIfAbsent(ctx, &model.Notification{
			UserID:     *d.UploadedByUserID,
			Type:       model.NotificationDocumentExpiry,
			Title:      "Document expiring: " + d.DocumentName,
			Message:    fmt.Sprintf("%s expires on %s (%s).", d.DocumentName, d.ExpirationDate.Format(time.DateOnly), daysLeft(now, *d.ExpirationDate)),
			EntityType: "document",
			EntityID:   &id,
		})
		if err != nil {
			return created, fmt.Errorf("failed to create expiry notification: %w", err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func daysLeft(now, t time.Time) string {
	days := int(t.Sub(now).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}
