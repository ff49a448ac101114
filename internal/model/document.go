package model

import "time"

// Document はアップロードまたはインポートされた文書を表す。
type Document struct {
	ID               int64
	ApplicationID    *int64
	DocumentType     string
	DocumentName     string
	FileURL          string
	FileKey          string
	MimeType         string
	FileSize         int64
	ExpirationDate   *time.Time
	UploadedByUserID *int64
	Notes            string
	CreatedAt        time.Time
}

// DocumentFilter は文書一覧の絞り込み条件。
// ApplicationIDがnilの場合は申請で絞り込まない。
type DocumentFilter struct {
	ApplicationID    *int64
	DocumentType     string
	UploadedByUserID int64
}

// DriveFileRef はGoogle Driveからインポートした文書の参照情報。
type DriveFileRef struct {
	DocumentID     int64
	GoogleFileID   string
	GoogleFileName string
	GoogleMimeType string
	WebViewLink    string
	LastSyncedAt   time.Time
}
