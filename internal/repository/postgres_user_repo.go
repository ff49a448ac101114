package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/grantdesk/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// IsDataError はerrが接続障害ではなく、値や制約に起因するPostgreSQLのエラーかを判定する。
// SQLSTATEクラス22（データ例外）と23（整合性制約違反）が該当する。
func IsDataError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "22", "23":
		return true
	}
	return false
}

const userColumns = `id, external_subject_id, name, email, login_method, role, preferred_language,
	last_signed_in, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	conn Conn
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(conn Conn) *PostgresUserRepo {
	return &PostgresUserRepo{conn: conn}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (*model.User, error) {
	user := &model.User{}
	var name, email, loginMethod sql.NullString
	dest := []any{
		&user.ID, &user.ExternalSubjectID, &name, &email, &loginMethod,
		&user.Role, &user.PreferredLanguage,
		&user.LastSignedIn, &user.CreatedAt, &user.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	user.Name = name.String
	user.Email = email.String
	user.LoginMethod = loginMethod.String
	return user, nil
}

// FindByExternalID は外部subject IDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByExternalID(ctx context.Context, subjectID string) (*model.User, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_subject_id = $1`,
		subjectID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by external ID: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// ResolveOrCreate は外部subject IDに対応するユーザーを作成または更新する。
// UNIQUE(external_subject_id)制約を利用したINSERT ON CONFLICTで実装し、
// 同一subjectに対する並行呼び出しでも行は1つしか作られない。
// roleは新規作成時のデフォルト値以外では一切変更しない。
// xmax = 0 はその行がこのステートメントで挿入されたことを表す。
func (r *PostgresUserRepo) ResolveOrCreate(ctx context.Context, subjectID string, profile ProfileFields, now time.Time) (*model.User, bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, false, err
	}

	var created bool
	user, err := scanUser(db.QueryRowContext(ctx,
		`INSERT INTO users (external_subject_id, name, email, login_method, last_signed_in, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $5, $5)
		 ON CONFLICT (external_subject_id) DO UPDATE SET
			name           = COALESCE(users.name, EXCLUDED.name),
			email          = COALESCE(users.email, EXCLUDED.email),
			login_method   = COALESCE(users.login_method, EXCLUDED.login_method),
			last_signed_in = EXCLUDED.last_signed_in,
			updated_at     = EXCLUDED.updated_at
		 RETURNING `+userColumns+`, (xmax = 0)`,
		subjectID, profile.Name, profile.Email, profile.LoginMethod, now.UTC(),
	), &created)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			// 並行する挿入に敗れた場合は既存行を返す
			existing, findErr := r.FindByExternalID(ctx, subjectID)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to resolve user: %w", err)
	}

	return user, created, nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdateLanguage はユーザーの表示言語を更新する。
func (r *PostgresUserRepo) UpdateLanguage(ctx context.Context, id int64, lang model.Language) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE users SET preferred_language = $2, updated_at = now() WHERE id = $1`,
		id, lang,
	); err != nil {
		return fmt.Errorf("failed to update language: %w", err)
	}
	return nil
}

// UpdateRole はユーザーのロールを更新する。該当ユーザーがいない場合はfalseを返す。
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id int64, role model.Role) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`,
		id, role,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update role: %w", err)
	}
	return affected(result)
}

// FindDriveToken はGoogle Drive連携トークンを取得する。未連携の場合はnilを返す。
func (r *PostgresUserRepo) FindDriveToken(ctx context.Context, id int64) (*model.DriveToken, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	var access, refresh sql.NullString
	var expiry sql.NullTime
	err = db.QueryRowContext(ctx,
		`SELECT drive_access_token, drive_refresh_token, drive_token_expiry FROM users WHERE id = $1`,
		id,
	).Scan(&access, &refresh, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find drive token: %w", err)
	}
	if !access.Valid {
		return nil, nil
	}
	return &model.DriveToken{
		AccessToken:  access.String,
		RefreshToken: refresh.String,
		Expiry:       expiry.Time,
	}, nil
}

// SaveDriveToken はGoogle Drive連携トークンを保存する。
// リフレッシュトークンが空の場合は既存の値を維持する。
func (r *PostgresUserRepo) SaveDriveToken(ctx context.Context, id int64, token *model.DriveToken) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	var expiry sql.NullTime
	if !token.Expiry.IsZero() {
		expiry = sql.NullTime{Time: token.Expiry.UTC(), Valid: true}
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE users SET
			drive_access_token  = $2,
			drive_refresh_token = COALESCE(NULLIF($3, ''), drive_refresh_token),
			drive_token_expiry  = $4,
			updated_at          = now()
		 WHERE id = $1`,
		id, token.AccessToken, token.RefreshToken, expiry,
	); err != nil {
		return fmt.Errorf("failed to save drive token: %w", err)
	}
	return nil
}

// ClearDriveToken はGoogle Drive連携トークンを削除する。
func (r *PostgresUserRepo) ClearDriveToken(ctx context.Context, id int64) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE users SET drive_access_token = NULL, drive_refresh_token = NULL,
			drive_token_expiry = NULL, updated_at = now()
		 WHERE id = $1`,
		id,
	); err != nil {
		return fmt.Errorf("failed to clear drive token: %w", err)
	}
	return nil
}

// affected はUPDATE/DELETEで1行以上が対象になったかを返す。
func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
