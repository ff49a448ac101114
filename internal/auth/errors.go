// Package auth はリクエストごとの認証パイプラインを提供する。
// Bearerトークンの検証、ローカルユーザーへの紐付け、権限レベルの判定を行う。
package auth

import "errors"

var (
	// ErrNoCredential はAuthorizationヘッダーが無い、または形式が不正な場合を表す。
	ErrNoCredential = errors.New("no credential")
	// ErrInvalidCredential はIdPがトークンを無効（期限切れ・改ざん・失効）と判定した場合を表す。
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrProviderUnavailable はIdPに問い合わせできなかった場合を表す。
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrStoreUnavailable はユーザーストアに到達できなかった場合を表す。
	ErrStoreUnavailable = errors.New("identity store unavailable")
	// ErrIdentityRejected はストアには到達できたが、外部IDの値が保存できなかった場合を表す
	// （列長超過など）。ストア障害ではないため縮退状態にはしない。
	ErrIdentityRejected = errors.New("identity rejected by store")
	// ErrUnauthorized は認証が必要な操作に未認証または縮退状態でアクセスした場合を表す。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden は認証済みだが権限が不足している場合を表す。
	ErrForbidden = errors.New("forbidden")
)
