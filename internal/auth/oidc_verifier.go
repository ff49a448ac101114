package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/hitoshi/grantdesk/internal/model"
)

// OIDCVerifier は任意のOIDCプロバイダーが発行したIDトークンを署名検証する。
// 公開鍵はプロバイダーのJWKSエンドポイントから取得しキャッシュされる。
type OIDCVerifier struct {
	verifier     *oidc.IDTokenVerifier
	providerName string
}

// oidcClaims はIDトークンのうち利用するクレーム。
type oidcClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// NewOIDCVerifier はdiscoveryドキュメントを取得してOIDCVerifierを生成する。
func NewOIDCVerifier(ctx context.Context, issuer, clientID string, timeout time.Duration) (*OIDCVerifier, error) {
	ctx = oidc.ClientContext(ctx, &http.Client{Timeout: timeout})
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
	}

	return newOIDCVerifier(issuer, provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// newOIDCVerifier は構築済みのIDTokenVerifierからOIDCVerifierを生成する。
// プロバイダー名には発行者URLのホスト名を使う。
func newOIDCVerifier(issuer string, verifier *oidc.IDTokenVerifier) *OIDCVerifier {
	name := "oidc"
	if u, err := url.Parse(issuer); err == nil && u.Host != "" {
		name = u.Host
	}
	return &OIDCVerifier{verifier: verifier, providerName: name}
}

// Verify はIDトークンの署名・発行者・audience・有効期限を検証する。
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*model.ExternalIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, classifyOIDCError(err)
	}

	var raw json.RawMessage
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode claims: %v", ErrInvalidCredential, err)
	}
	var claims oidcClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: failed to decode claims: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidCredential)
	}

	return &model.ExternalIdentity{
		Subject:     claims.Subject,
		Email:       claims.Email,
		Name:        claims.Name,
		Provider:    v.providerName,
		RawMetadata: raw,
	}, nil
}

// classifyOIDCError は検証エラーを無効トークンとIdP到達不可に分類する。
// go-oidcはJWKS取得失敗を文字列でのみ表現するため、メッセージも判定に使う。
func classifyOIDCError(err error) error {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return fmt.Errorf("%w: token expired", ErrInvalidCredential)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "fetching keys") {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
}

// compile-time interface check
var _ TokenVerifier = (*OIDCVerifier)(nil)
