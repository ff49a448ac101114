package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
)

// 認証パイプラインの終端状態。ログとメトリクスのラベルに使う。
const (
	OutcomeNoCredential        = "no_credential"
	OutcomeInvalidCredential   = "invalid_credential"
	OutcomeProviderUnavailable = "provider_unavailable"
	OutcomeStoreUnavailable    = "store_unavailable"
	OutcomeAuthenticated       = "authenticated"
	OutcomeAdministrator       = "administrator"
	OutcomeInternalError       = "internal_error"
)

// IdentityResolver は検証済みIDをローカルユーザーに解決するインターフェース。
// IdentityStoreが実装する。
type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, identity *model.ExternalIdentity) (*model.User, bool, error)
}

// OutcomeRecorder は終端状態ごとの件数を記録するインターフェース。
type OutcomeRecorder interface {
	RecordAuthOutcome(outcome string)
}

// SessionContextBuilder はリクエストごとにAuthorizationContextを構築する。
// 処理は NoCredential → Verifying → Resolving の一方向で、各終端状態で1件だけ構造化ログを出力する。
// どの失敗経路でもエラーを返さず、より低い権限のAuthorizationContextを返す。
type SessionContextBuilder struct {
	verifier      TokenVerifier
	resolver      IdentityResolver
	verifyTimeout time.Duration
	recorder      OutcomeRecorder
	logger        *slog.Logger
}

// NewSessionContextBuilder はSessionContextBuilderを生成する。
// recorderはnilでもよい。
func NewSessionContextBuilder(verifier TokenVerifier, resolver IdentityResolver, verifyTimeout time.Duration, recorder OutcomeRecorder) *SessionContextBuilder {
	return &SessionContextBuilder{
		verifier:      verifier,
		resolver:      resolver,
		verifyTimeout: verifyTimeout,
		recorder:      recorder,
		logger:        slog.Default(),
	}
}

// Build はリクエストのAuthorizationヘッダーからAuthorizationContextを構築する。
// 想定外のpanicが発生した場合も匿名を返し、スタックトレース付きでエラーログを出力する。
func (b *SessionContextBuilder) Build(r *http.Request) (ac *AuthorizationContext) {
	ctx := r.Context()

	defer func() {
		if rec := recover(); rec != nil {
			ac = b.finish(ctx, slog.LevelError, OutcomeInternalError, Anonymous(),
				slog.String("error", fmt.Sprint(rec)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	// 1. トークンの抽出
	token, ok := ExtractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return b.finish(ctx, slog.LevelDebug, OutcomeNoCredential, Anonymous())
	}

	// 2. IdPでの検証
	identity, err := b.verify(ctx, token)
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return b.finish(ctx, slog.LevelInfo, OutcomeInvalidCredential, Anonymous(),
			slog.String("error", err.Error()))
	case errors.Is(err, ErrProviderUnavailable):
		return b.finish(ctx, slog.LevelWarn, OutcomeProviderUnavailable, Anonymous(),
			slog.String("error", err.Error()))
	case err != nil:
		return b.finish(ctx, slog.LevelError, OutcomeInternalError, Anonymous(),
			slog.String("error", err.Error()))
	case identity == nil || identity.Subject == "":
		return b.finish(ctx, slog.LevelError, OutcomeInternalError, Anonymous(),
			slog.String("error", "verifier returned no identity"))
	}

	// 3. ローカルユーザーの解決
	user, created, err := b.resolver.ResolveOrCreate(ctx, identity)
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return b.finish(ctx, slog.LevelWarn, OutcomeStoreUnavailable, Degraded(identity),
			slog.String("error", err.Error()))
	case err != nil:
		return b.finish(ctx, slog.LevelError, OutcomeInternalError, Anonymous(),
			slog.String("error", err.Error()))
	case user == nil:
		return b.finish(ctx, slog.LevelError, OutcomeInternalError, Anonymous(),
			slog.String("error", "resolver returned no user"))
	}

	resolved := Resolved(identity, user)
	outcome := OutcomeAuthenticated
	if resolved.Capability() == CapabilityAdministrator {
		outcome = OutcomeAdministrator
	}
	return b.finish(ctx, slog.LevelInfo, outcome, resolved, slog.Bool("created", created))
}

func (b *SessionContextBuilder) verify(ctx context.Context, token string) (*model.ExternalIdentity, error) {
	if b.verifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.verifyTimeout)
		defer cancel()
	}
	return b.verifier.Verify(ctx, token)
}

// finish は終端状態のログとメトリクスを記録してacを返す。
func (b *SessionContextBuilder) finish(ctx context.Context, level slog.Level, outcome string, ac *AuthorizationContext, attrs ...slog.Attr) *AuthorizationContext {
	base := []slog.Attr{
		slog.String("outcome", outcome),
		slog.String("capability", ac.Capability().String()),
	}
	if id := ac.Identity(); id != nil {
		base = append(base, slog.String("subject", id.Subject))
	}
	if u := ac.User(); u != nil {
		base = append(base, slog.Int64("user_id", u.ID))
	}
	b.logger.LogAttrs(ctx, level, "auth_context", append(base, attrs...)...)

	if b.recorder != nil {
		b.recorder.RecordAuthOutcome(outcome)
	}
	return ac
}
