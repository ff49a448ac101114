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

const documentColumns = `id, application_id, document_type, document_name, file_url, file_key,
	mime_type, file_size, expiration_date, uploaded_by_user_id, notes, created_at`

// PostgresDocumentRepo はPostgreSQLを使用した文書リポジトリ。
type PostgresDocumentRepo struct {
	conn Conn
}

// NewPostgresDocumentRepo はPostgresDocumentRepoを生成する。
func NewPostgresDocumentRepo(conn Conn) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{conn: conn}
}

func scanDocument(row rowScanner) (*model.Document, error) {
	d := &model.Document{}
	var appID, size, uploader sql.NullInt64
	var mime, notes sql.NullString
	var expiry sql.NullTime
	err := row.Scan(
		&d.ID, &appID, &d.DocumentType, &d.DocumentName, &d.FileURL, &d.FileKey,
		&mime, &size, &expiry, &uploader, &notes, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ApplicationID = int64Ptr(appID)
	d.MimeType = mime.String
	d.FileSize = size.Int64
	d.ExpirationDate = timePtr(expiry)
	d.UploadedByUserID = int64Ptr(uploader)
	d.Notes = notes.String
	return d, nil
}

// FindByID は指定IDの文書を取得する。見つからない場合はnilを返す。
func (r *PostgresDocumentRepo) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	d, err := scanDocument(db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return d, nil
}

// List は条件に一致する文書を作成日時の降順で返す。
func (r *PostgresDocumentRepo) List(ctx context.Context, filter model.DocumentFilter) ([]*model.Document, error) {
	var conds []string
	var args []any
	if filter.ApplicationID != nil {
		args = append(args, *filter.ApplicationID)
		conds = append(conds, fmt.Sprintf("application_id = $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		conds = append(conds, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if filter.UploadedByUserID != 0 {
		args = append(args, filter.UploadedByUserID)
		conds = append(conds, fmt.Sprintf("uploaded_by_user_id = $%d", len(args)))
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return r.query(ctx, query, args...)
}

// ListExpiring はfrom以降until以前に有効期限を迎える文書を返す。
func (r *PostgresDocumentRepo) ListExpiring(ctx context.Context, from, until time.Time) ([]*model.Document, error) {
	return r.query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE expiration_date BETWEEN $1 AND $2
		 ORDER BY expiration_date ASC, id ASC`,
		from.UTC(), until.UTC(),
	)
}

func (r *PostgresDocumentRepo) query(ctx context.Context, query string, args ...any) ([]*model.Document, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// Create は文書を作成し、採番されたIDをdoc.IDに設定する。
func (r *PostgresDocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO documents (application_id, document_type, document_name, file_url, file_key,
			mime_type, file_size, expiration_date, uploaded_by_user_id, notes)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''))
		 RETURNING id, created_at`,
		doc.ApplicationID, doc.DocumentType, doc.DocumentName, doc.FileURL, doc.FileKey,
		doc.MimeType, doc.FileSize, doc.ExpirationDate, doc.UploadedByUserID, doc.Notes,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// DeleteOwned はアップロード者本人の文書のみを削除する。該当がない場合はfalseを返す。
func (r *PostgresDocumentRepo) DeleteOwned(ctx context.Context, id, ownerID int64) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = $1 AND uploaded_by_user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return affected(result)
}

// RecordDriveFile はGoogle Driveからのインポート元情報を記録する。
func (r *PostgresDocumentRepo) RecordDriveFile(ctx context.Context, ref *model.DriveFileRef) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	if ref.LastSyncedAt.IsZero() {
		ref.LastSyncedAt = time.Now().UTC()
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO google_drive_files (document_id, google_file_id, google_file_name,
			google_mime_type, google_web_view_link, last_synced_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)`,
		ref.DocumentID, ref.GoogleFileID, ref.GoogleFileName,
		ref.GoogleMimeType, ref.WebViewLink, ref.LastSyncedAt,
	); err != nil {
		return fmt.Errorf("failed to record drive file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DocumentRepository = (*PostgresDocumentRepo)(nil)
