// Package onetime は有効期限付きの使い捨てトークンを発行・消費するストアを提供する。
// OAuth連携のstateパラメータなど、1度だけ照合されるべき値に使う。
package onetime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound はトークンが存在しない、期限切れ、または消費済みの場合を表す。
var ErrNotFound = errors.New("one-time token not found")

// Store は使い捨てトークンのストア。
// Consumeは読み出しと削除を1つの不可分な操作として行い、同じトークンは2度成功しない。
type Store interface {
	Issue(ctx context.Context, payload string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, token string) (string, error)
}

// newToken は32バイトの乱数を16進文字列で返す。
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
