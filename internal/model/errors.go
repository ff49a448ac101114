package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, grant, document, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated        = "UNAUTHENTICATED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeInvalidRequest         = "INVALID_REQUEST"
	ErrCodeInvalidLanguage        = "INVALID_LANGUAGE"
	ErrCodeInvalidRole            = "INVALID_ROLE"
	ErrCodeInvalidStatus          = "INVALID_STATUS"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeGrantNotFound          = "GRANT_NOT_FOUND"
	ErrCodeApplicationNotFound    = "APPLICATION_NOT_FOUND"
	ErrCodeDocumentNotFound       = "DOCUMENT_NOT_FOUND"
	ErrCodeNotificationNotFound   = "NOTIFICATION_NOT_FOUND"
	ErrCodeDriveNotConnected      = "DRIVE_NOT_CONNECTED"
	ErrCodeInvalidOAuthState      = "INVALID_OAUTH_STATE"
	ErrCodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeReportGenerationFailed = "REPORT_GENERATION_FAILED"
	ErrCodeRateLimited            = "RATE_LIMIT_EXCEEDED"
	ErrCodeDriveFileNotFound      = "DRIVE_FILE_NOT_FOUND"
	ErrCodeFileTooLarge           = "FILE_TOO_LARGE"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

// NewUnauthenticatedError は認証が必要な操作に未認証でアクセスした場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Please login (10001)",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限が不足している場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have required permission (10002)",
		Category: "auth",
		Action:   "管理者に権限の付与を依頼してください。",
	}
}

// NewInvalidRequestError はリクエストボディやパラメータが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なリクエストです: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidLanguageError は未対応の言語が指定された場合のエラーを生成する。
func NewInvalidLanguageError(lang string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLanguage,
		Message:  fmt.Sprintf("未対応の言語です: %s", lang),
		Category: "validation",
		Action:   "言語には en、es、ca、eu のいずれかを指定してください。",
	}
}

// NewInvalidRoleError は未定義のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "ロールには user または admin を指定してください。",
	}
}

// NewInvalidStatusError は未定義の状態が指定された場合のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な状態です: %s", status),
		Category: "validation",
		Action:   "定義済みの状態を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewGrantNotFoundError は公募が見つからない場合のエラーを生成する。
func NewGrantNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeGrantNotFound,
		Message:  fmt.Sprintf("指定された公募が見つかりません: %d", id),
		Category: "grant",
		Action:   "公募IDを確認してください。",
	}
}

// NewApplicationNotFoundError は申請が見つからない場合のエラーを生成する。
func NewApplicationNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("指定された申請が見つかりません: %d", id),
		Category: "grant",
		Action:   "申請IDを確認してください。",
	}
}

// NewDocumentNotFoundError は文書が見つからない、または操作権限がない場合のエラーを生成する。
func NewDocumentNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentNotFound,
		Message:  fmt.Sprintf("指定された文書が見つかりません: %d", id),
		Category: "document",
		Action:   "文書IDを確認してください。",
	}
}

// NewNotificationNotFoundError は通知が見つからない場合のエラーを生成する。
func NewNotificationNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %d", id),
		Category: "document",
		Action:   "通知IDを確認してください。",
	}
}

// NewDriveNotConnectedError はGoogle Drive未連携の場合のエラーを生成する。
func NewDriveNotConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeDriveNotConnected,
		Message:  "Google Driveが連携されていません。",
		Category: "document",
		Action:   "設定画面からGoogle Driveを連携してください。",
	}
}

// NewInvalidOAuthStateError はOAuthのstateが無効または期限切れの場合のエラーを生成する。
func NewInvalidOAuthStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOAuthState,
		Message:  "OAuthのstateが無効または期限切れです。",
		Category: "auth",
		Action:   "もう一度連携をやり直してください。",
	}
}

// NewServiceUnavailableError は依存サービスが利用できない場合のエラーを生成する。
func NewServiceUnavailableError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  fmt.Sprintf("%s が一時的に利用できません。", service),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewReportGenerationFailedError はレポート生成に失敗した場合のエラーを生成する。
func NewReportGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeReportGenerationFailed,
		Message:  "レポートの生成に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterで示された秒数だけ待ってから再度お試しください。",
	}
}

// NewDriveFileNotFoundError はDrive上のファイルが見つからない場合のエラーを生成する。
func NewDriveFileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDriveFileNotFound,
		Message:  "Google Drive上のファイルが見つかりません。",
		Category: "document",
		Action:   "ファイルが削除されていないか、共有設定を確認してください。",
	}
}

// NewFileTooLargeError はファイルサイズが上限を超えた場合のエラーを生成する。
func NewFileTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  "ファイルサイズが上限を超えています。",
		Category: "document",
		Action:   "ファイルを分割するか圧縮してから再度お試しください。",
	}
}

// NewInternalError は想定外のエラーに対する利用者向けのエラーを生成する。
// 詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
