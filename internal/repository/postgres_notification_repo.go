package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	conn Conn
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(conn Conn) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{conn: conn}
}

// ListByUser はユーザーの通知を新しい順に返す。unreadOnlyがtrueの場合は未読のみ。
func (r *PostgresNotificationRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*model.Notification, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, type, title, message, related_entity_type, related_entity_id, is_read, created_at
		 FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 200`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		var message, entityType sql.NullString
		var entityID sql.NullInt64
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &message, &entityType, &entityID, &n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Message = message.String
		n.EntityType = entityType.String
		n.EntityID = int64Ptr(entityID)
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return list, nil
}

// MarkRead は本人の通知を既読にする。該当がない場合はfalseを返す。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return affected(result)
}

// CreateIfAbsent は同一ユーザー・種別・対象の未読通知がない場合のみ作成する。
// 作成した場合はtrueを返す。
func (r *PostgresNotificationRepo) CreateIfAbsent(ctx context.Context, n *model.Notification) (bool, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return false, err
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, type, title, message, related_entity_type, related_entity_id)
		 SELECT $1::bigint, $2::varchar, $3::varchar, NULLIF($4::text, ''), NULLIF($5::varchar, ''), $6::bigint
		 WHERE NOT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1::bigint AND type = $2::varchar AND is_read = false
			  AND related_entity_type IS NOT DISTINCT FROM NULLIF($5::varchar, '')
			  AND related_entity_id IS NOT DISTINCT FROM $6::bigint
		 )
		 RETURNING id, created_at`,
		n.UserID, n.Type, n.Title, n.Message, n.EntityType, n.EntityID,
	).Scan(&n.ID, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	return true, nil
}

// DeleteReadBefore はbefore以前に作成された既読通知を削除し、削除件数を返す。
func (r *PostgresNotificationRepo) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = true AND created_at < $1`,
		before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
