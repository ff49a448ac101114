package auth

import (
	"context"

	"github.com/hitoshi/grantdesk/internal/model"
)

// Capability はリクエストの権限レベルを表す。値が大きいほど強い。
type Capability int

const (
	// CapabilityAnonymous はトークンなし、または検証に失敗した状態。
	CapabilityAnonymous Capability = iota
	// CapabilityDegraded はIdPの検証は通ったがローカルユーザーを解決できなかった状態。
	// publicな操作のみ許可される。
	CapabilityDegraded
	// CapabilityAuthenticated はローカルユーザーが解決された状態。
	CapabilityAuthenticated
	// CapabilityAdministrator はローカルユーザーのroleがadminの状態。
	CapabilityAdministrator
)

// String はログとAPIレスポンスで使う名前を返す。
func (c Capability) String() string {
	switch c {
	case CapabilityAnonymous:
		return "anonymous"
	case CapabilityDegraded:
		return "degraded-authenticated"
	case CapabilityAuthenticated:
		return "authenticated"
	case CapabilityAdministrator:
		return "administrator"
	}
	return "unknown"
}

// AuthorizationContext はリクエストごとに1度だけ構築される認可情報。
// 権限レベルは保持するユーザーとIDから導出され、外部から直接設定できない。
type AuthorizationContext struct {
	user       *model.User
	identity   *model.ExternalIdentity
	capability Capability
}

// Anonymous は匿名のAuthorizationContextを返す。
func Anonymous() *AuthorizationContext {
	return &AuthorizationContext{capability: CapabilityAnonymous}
}

// Degraded は検証済みIDのみを持つ縮退状態のAuthorizationContextを返す。
func Degraded(identity *model.ExternalIdentity) *AuthorizationContext {
	if identity == nil {
		return Anonymous()
	}
	return &AuthorizationContext{identity: identity, capability: CapabilityDegraded}
}

// Resolved はローカルユーザーが解決済みのAuthorizationContextを返す。
// roleがadminの場合のみadministratorになる。
func Resolved(identity *model.ExternalIdentity, user *model.User) *AuthorizationContext {
	if user == nil {
		return Degraded(identity)
	}
	capability := CapabilityAuthenticated
	if user.IsAdmin() {
		capability = CapabilityAdministrator
	}
	return &AuthorizationContext{user: user, identity: identity, capability: capability}
}

// Capability は権限レベルを返す。
func (a *AuthorizationContext) Capability() Capability {
	if a == nil {
		return CapabilityAnonymous
	}
	return a.capability
}

// User は解決済みのローカルユーザーを返す。匿名・縮退状態ではnil。
func (a *AuthorizationContext) User() *model.User {
	if a == nil {
		return nil
	}
	return a.user
}

// Identity は検証済みの外部IDを返す。匿名状態ではnil。
func (a *AuthorizationContext) Identity() *model.ExternalIdentity {
	if a == nil {
		return nil
	}
	return a.identity
}

type contextKey struct{}

// WithAuthorization はAuthorizationContextを格納したcontextを返す。
func WithAuthorization(ctx context.Context, ac *AuthorizationContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext はcontextからAuthorizationContextを取得する。
// 格納されていない場合は匿名を返す。
func FromContext(ctx context.Context) *AuthorizationContext {
	if ac, ok := ctx.Value(contextKey{}).(*AuthorizationContext); ok && ac != nil {
		return ac
	}
	return Anonymous()
}
