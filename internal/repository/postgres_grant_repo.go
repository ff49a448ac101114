package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
)

const grantColumns = `id, funding_source, program_title, application_deadline, min_amount, max_amount,
	co_financing_percentage, eligibility_criteria, thematic_area, geographic_scope, status,
	assigned_to_user_id, call_documentation_url, notes, created_at, updated_at`

// PostgresGrantRepo はPostgreSQLを使用した助成金公募リポジトリ。
type PostgresGrantRepo struct {
	conn Conn
}

// NewPostgresGrantRepo はPostgresGrantRepoを生成する。
func NewPostgresGrantRepo(conn Conn) *PostgresGrantRepo {
	return &PostgresGrantRepo{conn: conn}
}

func scanGrant(row rowScanner) (*model.GrantOpportunity, error) {
	g := &model.GrantOpportunity{}
	var minAmount, maxAmount, coFinancing, assignee sql.NullInt64
	var eligibility, thematic, scope, callURL, notes sql.NullString
	err := row.Scan(
		&g.ID, &g.FundingSource, &g.ProgramTitle, &g.ApplicationDeadline,
		&minAmount, &maxAmount, &coFinancing,
		&eligibility, &thematic, &scope, &g.Status,
		&assignee, &callURL, &notes, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.MinAmount = int64Ptr(minAmount)
	g.MaxAmount = int64Ptr(maxAmount)
	if coFinancing.Valid {
		v := int(coFinancing.Int64)
		g.CoFinancingPercentage = &v
	}
	g.AssignedToUserID = int64Ptr(assignee)
	g.EligibilityCriteria = eligibility.String
	g.ThematicArea = thematic.String
	g.GeographicScope = scope.String
	g.CallDocumentationURL = callURL.String
	g.Notes = notes.String
	return g, nil
}

// FindByID は指定IDの公募を取得する。見つからない場合はnilを返す。
func (r *PostgresGrantRepo) FindByID(ctx context.Context, id int64) (*model.GrantOpportunity, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByDocumentationURL は公募要項URLで公募を検索する。見つからない場合はnilを返す。
func (r *PostgresGrantRepo) FindByDocumentationURL(ctx context.Context, url string) (*model.GrantOpportunity, error) {
	return r.findOne(ctx, `WHERE call_documentation_url = $1`, url)
}

func (r *PostgresGrantRepo) findOne(ctx context.Context, where string, arg any) (*model.GrantOpportunity, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	g, err := scanGrant(db.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM grant_opportunities `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find grant: %w", err)
	}
	return g, nil
}

// List は条件に一致する公募を締切の昇順で返す。
func (r *PostgresGrantRepo) List(ctx context.Context, filter model.GrantFilter) ([]*model.GrantOpportunity, error) {
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AssignedToUserID != 0 {
		args = append(args, filter.AssignedToUserID)
		conds = append(conds, fmt.Sprintf("assigned_to_user_id = $%d", len(args)))
	}

	query := `SELECT ` + grantColumns + ` FROM grant_opportunities`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY application_deadline ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.query(ctx, query, args...)
}

// ListUpcoming はfrom以降until以前に締切を迎える、終了状態でない公募を返す。
func (r *PostgresGrantRepo) ListUpcoming(ctx context.Context, from, until time.Time) ([]*model.GrantOpportunity, error) {
	return r.query(ctx,
		`SELECT `+grantColumns+` FROM grant_opportunities
		 WHERE application_deadline BETWEEN $1 AND $2
		   AND status NOT IN ('awarded', 'rejected', 'archived')
		 ORDER BY application_deadline ASC, id ASC`,
		from.UTC(), until.UTC(),
	)
}

func (r *PostgresGrantRepo) query(ctx context.Context, query string, args ...any) ([]*model.GrantOpportunity, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*model.GrantOpportunity
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}
	return grants, nil
}

// Create は公募を作成し、採番されたIDをgrant.IDに設定する。
func (r *PostgresGrantRepo) Create(ctx context.Context, grant *model.GrantOpportunity) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	if grant.Status == "" {
		grant.Status = model.GrantStatusMonitoring
	}
	err = db.QueryRowContext(ctx,
		`INSERT INTO grant_opportunities (funding_source, program_title, application_deadline,
			min_amount, max_amount, co_financing_percentage, eligibility_criteria, thematic_area,
			geographic_scope, status, assigned_to_user_id, call_documentation_url, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, NULLIF($12, ''), NULLIF($13, ''))
		 RETURNING id, created_at, updated_at`,
		grant.FundingSource, grant.ProgramTitle, grant.ApplicationDeadline.UTC(),
		grant.MinAmount, grant.MaxAmount, grant.CoFinancingPercentage,
		grant.EligibilityCriteria, grant.ThematicArea, grant.GeographicScope,
		grant.Status, grant.AssignedToUserID, grant.CallDocumentationURL, grant.Notes,
	).Scan(&grant.ID, &grant.CreatedAt, &grant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

// Update は公募を更新する。該当がない場合はfalseを返す。
func (r *PostgresGrantRepo) Update(ctx context.Context, grant *model.GrantOpportunity) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE grant_opportunities SET
			funding_source = $2, program_title = $3, application_deadline = $4,
			min_amount = $5, max_amount = $6, co_financing_percentage = $7,
			eligibility_criteria = NULLIF($8, ''), thematic_area = NULLIF($9, ''),
			geographic_scope = NULLIF($10, ''), status = $11, assigned_to_user_id = $12,
			call_documentation_url = NULLIF($13, ''), notes = NULLIF($14, ''),
			updated_at = now()
		 WHERE id = $1`,
		grant.ID, grant.FundingSource, grant.ProgramTitle, grant.ApplicationDeadline.UTC(),
		grant.MinAmount, grant.MaxAmount, grant.CoFinancingPercentage,
		grant.EligibilityCriteria, grant.ThematicArea, grant.GeographicScope,
		grant.Status, grant.AssignedToUserID, grant.CallDocumentationURL, grant.Notes,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update grant: %w", err)
	}
	return affected(result)
}

// Delete は公募を削除する。該当がない場合はfalseを返す。
// 紐付く申請はCASCADE削除される。
func (r *PostgresGrantRepo) Delete(ctx context.Context, id int64) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM grant_opportunities WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete grant: %w", err)
	}
	return affected(result)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// compile-time interface check
var _ GrantRepository = (*PostgresGrantRepo)(nil)
