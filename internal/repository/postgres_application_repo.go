package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/grantdesk/internal/model"
)

const applicationColumns = `id, grant_opportunity_id, project_title, status, requested_amount,
	co_financing_amount, project_start_date, project_end_date, target_beneficiaries,
	assigned_to_user_id, created_at, updated_at`

// PostgresApplicationRepo はPostgreSQLを使用した申請リポジトリ。
type PostgresApplicationRepo struct {
	conn Conn
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(conn Conn) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{conn: conn}
}

func scanApplication(row rowScanner) (*model.Application, error) {
	a := &model.Application{}
	var requested, coFinancing, assignee sql.NullInt64
	var start, end sql.NullTime
	var beneficiaries sql.NullString
	err := row.Scan(
		&a.ID, &a.GrantOpportunityID, &a.ProjectTitle, &a.Status,
		&requested, &coFinancing, &start, &end, &beneficiaries,
		&assignee, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.RequestedAmount = int64Ptr(requested)
	a.CoFinancingAmount = int64Ptr(coFinancing)
	a.ProjectStartDate = timePtr(start)
	a.ProjectEndDate = timePtr(end)
	a.TargetBeneficiaries = beneficiaries.String
	a.AssignedToUserID = int64Ptr(assignee)
	return a, nil
}

// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, id int64) (*model.Application, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	a, err := scanApplication(db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return a, nil
}

// List は条件に一致する申請を作成日時の降順で返す。
func (r *PostgresApplicationRepo) List(ctx context.Context, filter model.ApplicationFilter) ([]*model.Application, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.GrantOpportunityID != 0 {
		args = append(args, filter.GrantOpportunityID)
		conds = append(conds, fmt.Sprintf("grant_opportunity_id = $%d", len(args)))
	}
	if filter.AssignedToUserID != 0 {
		args = append(args, filter.AssignedToUserID)
		conds = append(conds, fmt.Sprintf("assigned_to_user_id = $%d", len(args)))
	}

	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

// Create は申請を作成し、採番されたIDをapp.IDに設定する。
func (r *PostgresApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	if app.Status == "" {
		app.Status = model.ApplicationStatusDraft
	}
	err = db.QueryRowContext(ctx,
		`INSERT INTO applications (grant_opportunity_id, project_title, status, requested_amount,
			co_financing_amount, project_start_date, project_end_date, target_beneficiaries, assigned_to_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		 RETURNING id, created_at, updated_at`,
		app.GrantOpportunityID, app.ProjectTitle, app.Status, app.RequestedAmount,
		app.CoFinancingAmount, app.ProjectStartDate, app.ProjectEndDate,
		app.TargetBeneficiaries, app.AssignedToUserID,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// UpdateStatus は申請の状態を更新する。該当がない場合はfalseを返す。
func (r *PostgresApplicationRepo) UpdateStatus(ctx context.Context, id int64, status model.ApplicationStatus) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE applications SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}
	return affected(result)
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
