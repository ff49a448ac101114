package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/grantdesk/internal/model"
)

// PostgresReportRepo はPostgreSQLを使用したインパクトレポートリポジトリ。
type PostgresReportRepo struct {
	conn Conn
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(conn Conn) *PostgresReportRepo {
	return &PostgresReportRepo{conn: conn}
}

// Create はレポートを作成し、採番されたIDをreport.IDに設定する。
func (r *PostgresReportRepo) Create(ctx context.Context, report *model.ImpactReport) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	if report.Status == "" {
		report.Status = model.ImpactReportDraft
	}
	err = db.QueryRowContext(ctx,
		`INSERT INTO impact_reports (application_id, report_title, report_type, status, content, created_by_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		report.ApplicationID, report.Title, report.ReportType, report.Status, report.Content, report.CreatedByUserID,
	).Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create impact report: %w", err)
	}
	return nil
}

// ListByCreator は作成者のレポートを新しい順に返す。
func (r *PostgresReportRepo) ListByCreator(ctx context.Context, userID int64) ([]*model.ImpactReport, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, application_id, report_title, report_type, status, content, created_by_user_id, created_at
		 FROM impact_reports WHERE created_by_user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list impact reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.ImpactReport
	for rows.Next() {
		rep := &model.ImpactReport{}
		var content sql.NullString
		if err := rows.Scan(
			&rep.ID, &rep.ApplicationID, &rep.Title, &rep.ReportType, &rep.Status,
			&content, &rep.CreatedByUserID, &rep.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan impact report: %w", err)
		}
		rep.Content = content.String
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate impact reports: %w", err)
	}
	return reports, nil
}

// compile-time interface check
var _ ReportRepository = (*PostgresReportRepo)(nil)
