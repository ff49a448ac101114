package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/grantdesk/internal/database"
)

// HealthChecker はデータベース接続を取得するインターフェース。
// database.Poolが実装する。
type HealthChecker interface {
	Get(ctx context.Context) (*sql.DB, error)
}

// Health はプロセスの生存とデータベースの状態を返す。
// データベースが利用できない場合も200を返し、databaseフィールドで状態を示す。
// GET /health
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "up"
		if checker == nil {
			status = "unconfigured"
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			db, err := checker.Get(ctx)
			if err == nil {
				err = db.PingContext(ctx)
			}
			switch {
			case errors.Is(err, database.ErrNotConfigured):
				status = "unconfigured"
			case err != nil:
				status = "unavailable"
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": status,
		})
	}
}
