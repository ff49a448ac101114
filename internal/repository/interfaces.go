// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
)

// Conn は遅延初期化されるDB接続を提供するインターフェース。
// database.Poolが実装する。
type Conn interface {
	Get(ctx context.Context) (*sql.DB, error)
}

// ProfileFields はResolveOrCreateで渡す外部IdP由来のプロフィール。
// 空文字列は「値なし」として扱う。
type ProfileFields struct {
	Name        string
	Email       string
	LoginMethod string
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByExternalID は外部subject IDでユーザーを取得する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, subjectID string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// ResolveOrCreate は外部subject IDに対応するユーザーを単一ステートメントで作成または更新する。
	// roleは変更しない。プロフィール項目は既存値がNULLの場合のみ埋める。
	// 戻り値のboolは新規作成されたかを表す。
	ResolveOrCreate(ctx context.Context, subjectID string, profile ProfileFields, now time.Time) (*model.User, bool, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateLanguage はユーザーの表示言語を更新する。
	UpdateLanguage(ctx context.Context, id int64, lang model.Language) error

	// UpdateRole はユーザーのロールを更新する。該当ユーザーがいない場合はfalseを返す。
	UpdateRole(ctx context.Context, id int64, role model.Role) (bool, error)

	// FindDriveToken はGoogle Drive連携トークンを取得する。未連携の場合はnilを返す。
	FindDriveToken(ctx context.Context, id int64) (*model.DriveToken, error)

	// SaveDriveToken はGoogle Drive連携トークンを保存する。
	SaveDriveToken(ctx context.Context, id int64, token *model.DriveToken) error

	// ClearDriveToken はGoogle Drive連携トークンを削除する。
	ClearDriveToken(ctx context.Context, id int64) error
}

// GrantRepository は助成金公募の永続化インターフェース。
type GrantRepository interface {
	// FindByID は指定IDの公募を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.GrantOpportunity, error)

	// FindByDocumentationURL は公募要項URLで公募を検索する。見つからない場合はnilを返す。
	FindByDocumentationURL(ctx context.Context, url string) (*model.GrantOpportunity, error)

	// List は条件に一致する公募を締切の昇順で返す。
	List(ctx context.Context, filter model.GrantFilter) ([]*model.GrantOpportunity, error)

	// ListUpcoming はfrom以降until以前に締切を迎える、終了状態でない公募を返す。
	ListUpcoming(ctx context.Context, from, until time.Time) ([]*model.GrantOpportunity, error)

	// Create は公募を作成し、採番されたIDをgrant.IDに設定する。
	Create(ctx context.Context, grant *model.GrantOpportunity) error

	// Update は公募を更新する。該当がない場合はfalseを返す。
	Update(ctx context.Context, grant *model.GrantOpportunity) (bool, error)

	// Delete は公募を削除する。該当がない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)
}

// ApplicationRepository は申請の永続化インターフェース。
type ApplicationRepository interface {
	// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Application, error)

	// List は条件に一致する申請を作成日時の降順で返す。
	List(ctx context.Context, filter model.ApplicationFilter) ([]*model.Application, error)

	// Create は申請を作成し、採番されたIDをapp.IDに設定する。
	Create(ctx context.Context, app *model.Application) error

	// UpdateStatus は申請の状態を更新する。該当がない場合はfalseを返す。
	UpdateStatus(ctx context.Context, id int64, status model.ApplicationStatus) (bool, error)
}

// DocumentRepository は文書の永続化インターフェース。
type DocumentRepository interface {
	// FindByID は指定IDの文書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List は条件に一致する文書を作成日時の降順で返す。
	List(ctx context.Context, filter model.DocumentFilter) ([]*model.Document, error)

	// ListExpiring はfrom以降until以前に有効期限を迎える文書を返す。
	ListExpiring(ctx context.Context, from, until time.Time) ([]*model.Document, error)

	// Create は文書を作成し、採番されたIDをdoc.IDに設定する。
	Create(ctx context.Context, doc *model.Document) error

	// DeleteOwned はアップロード者本人の文書のみを削除する。該当がない場合はfalseを返す。
	DeleteOwned(ctx context.Context, id, ownerID int64) (bool, error)

	// RecordDriveFile はGoogle Driveからのインポート元情報を記録する。
	RecordDriveFile(ctx context.Context, ref *model.DriveFileRef) error
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// ListByUser はユーザーの通知を新しい順に返す。unreadOnlyがtrueの場合は未読のみ。
	ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*model.Notification, error)

	// MarkRead は本人の通知を既読にする。該当がない場合はfalseを返す。
	MarkRead(ctx context.Context, id, userID int64) (bool, error)

	// CreateIfAbsent は同一ユーザー・種別・対象の未読通知がない場合のみ作成する。
	// 作成した場合はtrueを返す。
	CreateIfAbsent(ctx context.Context, n *model.Notification) (bool, error)

	// DeleteReadBefore はbefore以前に作成された既読通知を削除し、削除件数を返す。
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReportRepository はインパクトレポートの永続化インターフェース。
type ReportRepository interface {
	// Create はレポートを作成し、採番されたIDをreport.IDに設定する。
	Create(ctx context.Context, report *model.ImpactReport) error

	// ListByCreator は作成者のレポートを新しい順に返す。
	ListByCreator(ctx context.Context, userID int64) ([]*model.ImpactReport, error)
}

// OrganizationRepository は団体プロフィールの永続化インターフェース。
type OrganizationRepository interface {
	// FindByUser はユーザーの団体プロフィールを取得する。未登録の場合はnilを返す。
	FindByUser(ctx context.Context, userID int64) (*model.OrganizationProfile, error)

	// Upsert はユーザーの団体プロフィールを作成、または全項目を置き換える。
	// 新規作成だった場合はtrueを返す。
	Upsert(ctx context.Context, profile *model.OrganizationProfile) (bool, error)
}
