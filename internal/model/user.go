// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザー。新規作成時のデフォルト。
	RoleUser Role = "user"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// Valid はロールが定義済みの値かを判定する。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Language はユーザーの表示言語を表す。
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
	LanguageCatalan Language = "ca"
	LanguageBasque  Language = "eu"

	// DefaultLanguage は新規ユーザーに設定される言語。
	DefaultLanguage = LanguageEnglish
)

// Valid は言語が対応言語のいずれかであるかを判定する。
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageSpanish, LanguageCatalan, LanguageBasque:
		return true
	}
	return false
}

// User はローカルに永続化されるユーザーを表す。
// ExternalSubjectID は外部IdPのsubjectとの1:1の結合キーで、作成後は変更されない。
// Name, Email, LoginMethod はNULL許容のため空文字列を未設定として扱う。
type User struct {
	ID                int64
	ExternalSubjectID string
	Name              string
	Email             string
	LoginMethod       string
	Role              Role
	PreferredLanguage Language
	LastSignedIn      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin はユーザーが管理者ロールを持つかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DriveToken はユーザーごとのGoogle Drive連携トークンを表す。
type DriveToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
