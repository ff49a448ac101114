package auth

// Requirement は操作が要求する最低限の権限レベル。
type Requirement int

const (
	RequirePublic Requirement = iota
	RequireAuthenticated
	RequireAdministrator
)

// String はログとメトリクスで使う名前を返す。
func (r Requirement) String() string {
	switch r {
	case RequirePublic:
		return "public"
	case RequireAuthenticated:
		return "authenticated"
	case RequireAdministrator:
		return "administrator"
	}
	return "unknown"
}

// Authorize は操作の要求レベルとAuthorizationContextを照合する。
// 未認証・縮退状態はErrUnauthorized、認証済みで権限不足はErrForbiddenを返す。
// 縮退状態が満たすのはRequirePublicのみ。
func Authorize(req Requirement, ac *AuthorizationContext) error {
	c := ac.Capability()

	switch req {
	case RequirePublic:
		return nil
	case RequireAuthenticated:
		if c >= CapabilityAuthenticated {
			return nil
		}
		return ErrUnauthorized
	case RequireAdministrator:
		switch c {
		case CapabilityAdministrator:
			return nil
		case CapabilityAuthenticated:
			return ErrForbidden
		}
		return ErrUnauthorized
	}

	// 未定義の要求レベルは拒否する
	if c >= CapabilityAuthenticated {
		return ErrForbidden
	}
	return ErrUnauthorized
}
