// Package drive はGoogle Drive連携（OAuth接続、ファイル一覧、文書インポート）を提供する。
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/grantdesk/internal/model"
)

const (
	defaultAPIBaseURL = "https://www.googleapis.com"
	readOnlyScope     = "https://www.googleapis.com/auth/drive.readonly"
	defaultPageSize   = 50
	defaultMaxSize    = 25 << 20
)

// ErrFileTooLarge はダウンロード対象が上限サイズを超える場合を表す。
var ErrFileTooLarge = errors.New("drive file too large")

// APIError はDrive APIが非2xxを返した場合のエラー。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive api returned status %d: %s", e.StatusCode, e.Body)
}

// Config はGoogle Drive連携の設定。
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能な値
	Endpoint   oauth2.Endpoint
	APIBaseURL string
	MaxSize    int64
}

// File はDrive上のファイルのメタデータ。
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size,string,omitempty"`
	ModifiedTime time.Time `json:"modifiedTime"`
	WebViewLink  string    `json:"webViewLink"`
}

// FileList はファイル一覧の1ページ分。
type FileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// FetchedFile はダウンロードまたはエクスポートしたファイルの内容。
type FetchedFile struct {
	File
	Data        []byte
	ContentType string
}

// exportFormats はGoogle Workspace形式ごとのエクスポート先。
var exportFormats = map[string]struct {
	mimeType string
	ext      string
}{
	"application/vnd.google-apps.document":     {"application/pdf", ".pdf"},
	"application/vnd.google-apps.spreadsheet":  {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	"application/vnd.google-apps.presentation": {"application/vnd.openxmlformats-officedocument.presentationml.presentation", ".pptx"},
}

// Client はGoogle Drive REST APIのクライアント。
type Client struct {
	oauth   *oauth2.Config
	apiBase string
	maxSize int64
}

// NewClient はClientを生成する。
func NewClient(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{readOnlyScope},
		},
		apiBase: strings.TrimRight(apiBase, "/"),
		maxSize: maxSize,
	}
}

// Configured はOAuthクライアントが設定済みかを返す。
func (c *Client) Configured() bool {
	return c.oauth.ClientID != "" && c.oauth.ClientSecret != ""
}

// AuthURL は同意画面のURLを返す。リフレッシュトークンを得るためオフラインアクセスを要求する。
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange は認可コードをトークンに交換する。
func (c *Client) Exchange(ctx context.Context, code string) (*model.DriveToken, error) {
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return fromOAuthToken(tok), nil
}

// TokenSource は保存済みトークンから自動更新付きのTokenSourceを生成する。
func (c *Client) TokenSource(ctx context.Context, token *model.DriveToken) oauth2.TokenSource {
	return c.oauth.TokenSource(ctx, toOAuthToken(token))
}

// ListFiles はゴミ箱以外のファイルを更新日時の降順で返す。queryはファイル名の部分一致。
func (c *Client) ListFiles(ctx context.Context, ts oauth2.TokenSource, query, pageToken string) (*FileList, error) {
	q := "trashed = false and mimeType != 'application/vnd.google-apps.folder'"
	if query != "" {
		q += fmt.Sprintf(" and name contains '%s'", escapeQuery(query))
	}
	params := url.Values{
		"q":        {q},
		"orderBy":  {"modifiedTime desc"},
		"pageSize": {strconv.Itoa(defaultPageSize)},
		"fields":   {"nextPageToken,files(id,name,mimeType,size,modifiedTime,webViewLink)"},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var list FileList
	if err := c.getJSON(ctx, ts, "/drive/v3/files?"+params.Encode(), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Fetch はファイルの内容を取得する。Google Workspace形式はPDF/XLSX/PPTXにエクスポートする。
func (c *Client) Fetch(ctx context.Context, ts oauth2.TokenSource, fileID string) (*FetchedFile, error) {
	var meta File
	params := url.Values{"fields": {"id,name,mimeType,size,modifiedTime,webViewLink"}}
	if err := c.getJSON(ctx, ts, "/drive/v3/files/"+url.PathEscape(fileID)+"?"+params.Encode(), &meta); err != nil {
		return nil, err
	}

	path := "/drive/v3/files/" + url.PathEscape(fileID) + "?alt=media"
	if format, ok := exportFormats[meta.MimeType]; ok {
		path = "/drive/v3/files/" + url.PathEscape(fileID) + "/export?" + url.Values{"mimeType": {format.mimeType}}.Encode()
		if !strings.HasSuffix(strings.ToLower(meta.Name), format.ext) {
			meta.Name += format.ext
		}
	} else if meta.Size > c.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, meta.Size)
	}

	resp, err := c.do(ctx, ts, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	if int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, c.maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = meta.MimeType
	}
	meta.Size = int64(len(data))
	return &FetchedFile{File: meta, Data: data, ContentType: contentType}, nil
}

func (c *Client) getJSON(ctx context.Context, ts oauth2.TokenSource, path string, out any) error {
	resp, err := c.do(ctx, ts, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode drive response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, ts oauth2.TokenSource, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive request: %w", err)
	}

	resp, err := oauth2.NewClient(ctx, ts).Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// escapeQuery はDriveクエリ文字列リテラル内の特殊文字をエスケープする。
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func toOAuthToken(t *model.DriveToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		TokenType:    "Bearer",
	}
}

func fromOAuthToken(t *oauth2.Token) *model.DriveToken {
	return &model.DriveToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}
