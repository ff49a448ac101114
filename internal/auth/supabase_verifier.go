package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
)

// maxUserResponseSize はIdPのユーザー情報レスポンスとして読み込む最大バイト数。
const maxUserResponseSize = 1 << 20

// defaultLoginMethod はapp_metadata.providerが無い場合のログイン方法。
const defaultLoginMethod = "email"

// SupabaseVerifier はSupabase Authの /auth/v1/user エンドポイントでトークンを検証する。
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseVerifier はSupabaseVerifierを生成する。
// timeoutはIdPへの1回の問い合わせに許す最大時間。
func NewSupabaseVerifier(baseURL, anonKey string, timeout time.Duration) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// supabaseUser は /auth/v1/user のレスポンスのうち利用する項目。
type supabaseUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
	UserMetadata json.RawMessage `json:"user_metadata"`
}

type supabaseUserMetadata struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// Verify はトークンをSupabase Authに問い合わせて検証する。
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*model.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case isRejectionStatus(resp.StatusCode):
		return nil, fmt.Errorf("%w: provider returned status %d", ErrInvalidCredential, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: provider returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var u supabaseUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("%w: failed to parse user response: %v", ErrProviderUnavailable, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: empty subject in user response", ErrInvalidCredential)
	}

	return toExternalIdentity(&u), nil
}

// isRejectionStatus はIdPがトークンそのものを拒否したことを表すステータスかを判定する。
func isRejectionStatus(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func toExternalIdentity(u *supabaseUser) *model.ExternalIdentity {
	var meta supabaseUserMetadata
	if len(u.UserMetadata) > 0 {
		// メタデータの形式が想定外でも検証結果自体は有効とする
		_ = json.Unmarshal(u.UserMetadata, &meta)
	}

	name := meta.Name
	if name == "" {
		name = meta.FullName
	}
	provider := u.AppMetadata.Provider
	if provider == "" {
		provider = defaultLoginMethod
	}

	return &model.ExternalIdentity{
		Subject:     u.ID,
		Email:       u.Email,
		Name:        name,
		Provider:    provider,
		RawMetadata: u.UserMetadata,
	}
}

// compile-time interface check
var _ TokenVerifier = (*SupabaseVerifier)(nil)
