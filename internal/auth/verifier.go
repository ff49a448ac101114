package auth

import (
	"context"

	"github.com/hitoshi/grantdesk/internal/model"
)

// TokenVerifier はBearerトークンを外部IdPで検証するインターフェース。
// 無効なトークンにはErrInvalidCredential、IdPに到達できない場合はErrProviderUnavailableを
// ラップしたエラーを返す。再試行は行わない。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.ExternalIdentity, error)
}
