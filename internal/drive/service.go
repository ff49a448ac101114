package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/onetime"
	"github.com/hitoshi/grantdesk/internal/repository"
	"github.com/hitoshi/grantdesk/internal/storage"
)

var (
	// ErrNotConfigured はOAuthクライアントが設定されていない場合を表す。
	ErrNotConfigured = errors.New("google drive integration is not configured")
	// ErrNotConnected はユーザーがDriveを連携していない場合を表す。
	ErrNotConnected = errors.New("google drive is not connected")
	// ErrInvalidState はOAuthのstateが不正、期限切れ、または別ユーザーのものである場合を表す。
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrApplicationNotFound はインポート先に指定した申請が存在しない場合を表す。
	ErrApplicationNotFound = errors.New("application not found")
)

// rollbackTimeout はインポート失敗時の後始末に使う時間の上限。
const rollbackTimeout = 5 * time.Second

// ImportRequest は文書インポート時に付与する属性。
type ImportRequest struct {
	FileID         string
	ApplicationID  *int64
	DocumentType   string
	ExpirationDate *time.Time
	Notes          string
}

// Service はユーザー単位のDrive連携を扱う。
type Service struct {
	client       *Client
	users        repository.UserRepository
	applications repository.ApplicationRepository
	documents    repository.DocumentRepository
	storage      storage.Storage
	states       onetime.Store
	stateTTL     time.Duration
}

// Repositories はServiceが使うリポジトリをまとめたもの。
type Repositories struct {
	Users        repository.UserRepository
	Applications repository.ApplicationRepository
	Documents    repository.DocumentRepository
}

// NewService はServiceを生成する。
func NewService(client *Client, repos Repositories, store storage.Storage, states onetime.Store, stateTTL time.Duration) *Service {
	return &Service{
		client:       client,
		users:        repos.Users,
		applications: repos.Applications,
		documents:    repos.Documents,
		storage:      store,
		states:       states,
		stateTTL:     stateTTL,
	}
}

// AuthURL はユーザーに紐づく使い捨てstateを発行し、同意画面のURLを返す。
func (s *Service) AuthURL(ctx context.Context, userID int64) (string, error) {
	if !s.client.Configured() {
		return "", ErrNotConfigured
	}
	state, err := s.states.Issue(ctx, strconv.FormatInt(userID, 10), s.stateTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue oauth state: %w", err)
	}
	return s.client.AuthURL(state), nil
}

// HandleCallback はstateを消費して認可コードをトークンに交換し、ユーザーに保存する。
// stateは発行したユーザー本人のものでなければならない。
func (s *Service) HandleCallback(ctx context.Context, userID int64, state, code string) error {
	if !s.client.Configured() {
		return ErrNotConfigured
	}
	payload, err := s.states.Consume(ctx, state)
	if errors.Is(err, onetime.ErrNotFound) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if payload != strconv.FormatInt(userID, 10) {
		return ErrInvalidState
	}

	token, err := s.client.Exchange(ctx, code)
	if err != nil {
		return err
	}
	if err := s.users.SaveDriveToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to save drive token: %w", err)
	}

	slog.Info("google drive connected", slog.Int64("user_id", userID))
	return nil
}

// Status はユーザーがDriveを連携済みかを返す。
func (s *Service) Status(ctx context.Context, userID int64) (bool, error) {
	token, err := s.users.FindDriveToken(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to find drive token: %w", err)
	}
	return token != nil, nil
}

// Disconnect は保存済みトークンを削除する。
func (s *Service) Disconnect(ctx context.Context, userID int64) error {
	if err := s.users.ClearDriveToken(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear drive token: %w", err)
	}
	return nil
}

// ListFiles はユーザーのDrive上のファイルを一覧する。
func (s *Service) ListFiles(ctx context.Context, userID int64, query, pageToken string) (*FileList, error) {
	var list *FileList
	err := s.withTokenSource(ctx, userID, func(ts oauth2.TokenSource) error {
		var err error
		list, err = s.client.ListFiles(ctx, ts, query, pageToken)
		return err
	})
	return list, err
}

// Import はDrive上のファイルを取得して保存し、文書とインポート元の参照を記録する。
// 申請を指定した場合はその存在を先に確認する。
// 保存後に記録が失敗した場合は、保存したファイルと作成済みの文書を取り除く。
func (s *Service) Import(ctx context.Context, userID int64, req ImportRequest) (*model.Document, error) {
	if req.ApplicationID != nil {
		app, err := s.applications.FindByID(ctx, *req.ApplicationID)
		if err != nil {
			return nil, fmt.Errorf("failed to find application: %w", err)
		}
		if app == nil {
			return nil, ErrApplicationNotFound
		}
	}

	var fetched *FetchedFile
	err := s.withTokenSource(ctx, userID, func(ts oauth2.TokenSource) error {
		var err error
		fetched, err = s.client.Fetch(ctx, ts, req.FileID)
		return err
	})
	if err != nil {
		return nil, err
	}

	key := storage.DocumentKey(userID, fetched.Name)
	fileURL, err := s.storage.Put(ctx, key, fetched.Data, fetched.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store imported file: %w", err)
	}

	documentType := req.DocumentType
	if documentType == "" {
		documentType = "other"
	}
	doc := &model.Document{
		ApplicationID:    req.ApplicationID,
		DocumentType:     documentType,
		DocumentName:     fetched.Name,
		FileURL:          fileURL,
		FileKey:          key,
		MimeType:         fetched.ContentType,
		FileSize:         fetched.Size,
		ExpirationDate:   req.ExpirationDate,
		UploadedByUserID: &userID,
		Notes:            req.Notes,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		s.rollback(ctx, userID, key, 0)
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	ref := &model.DriveFileRef{
		DocumentID:     doc.ID,
		GoogleFileID:   fetched.ID,
		GoogleFileName: fetched.Name,
		GoogleMimeType: fetched.MimeType,
		WebViewLink:    fetched.WebViewLink,
		LastSyncedAt:   time.Now(),
	}
	if err := s.documents.RecordDriveFile(ctx, ref); err != nil {
		s.rollback(ctx, userID, key, doc.ID)
		return nil, fmt.Errorf("failed to record drive file: %w", err)
	}

	slog.Info("document imported from google drive",
		slog.Int64("user_id", userID),
		slog.Int64("document_id", doc.ID),
		slog.Int64("size", fetched.Size),
	)
	return doc, nil
}

// rollback は途中で失敗したインポートの文書行（docIDが0でなければ）と保存済みファイルを削除する。
// リクエストがキャンセルされていても後始末は行う。
func (s *Service) rollback(ctx context.Context, userID int64, key string, docID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if docID != 0 {
		if _, err := s.documents.DeleteOwned(ctx, docID, userID); err != nil {
			slog.Warn("failed to remove partially imported document",
				slog.Int64("document_id", docID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.Warn("failed to remove orphaned import file",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// withTokenSource は保存済みトークンでfnを実行し、実行中に更新されたトークンを保存し直す。
func (s *Service) withTokenSource(ctx context.Context, userID int64, fn func(oauth2.TokenSource) error) error {
	if !s.client.Configured() {
		return ErrNotConfigured
	}
	stored, err := s.users.FindDriveToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find drive token: %w", err)
	}
	if stored == nil {
		return ErrNotConnected
	}

	ts := s.client.TokenSource(ctx, stored)
	if err := fn(ts); err != nil {
		return err
	}

	current, err := ts.Token()
	if err != nil || current.AccessToken == stored.AccessToken {
		return nil
	}
	refreshed := fromOAuthToken(current)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = stored.RefreshToken
	}
	if err := s.users.SaveDriveToken(ctx, userID, refreshed); err != nil {
		slog.Warn("failed to persist refreshed drive token",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
