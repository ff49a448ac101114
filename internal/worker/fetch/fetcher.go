package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
	"github.com/hitoshi/grantdesk/internal/security"
)

// 件数メトリクスのラベルに使うフェッチ結果。
const (
	ResultOK          = "ok"
	ResultNotModified = "not_modified"
	ResultBlocked     = "blocked"
	ResultHTTPError   = "http_error"
	ResultParseError  = "parse_error"
)

// defaultDeadlineWindow は締切を読み取れない公募に仮置きする締切までの期間。
const defaultDeadlineWindow = 60 * 24 * time.Hour

var deadlinePattern = regexp.MustCompile(`(?i)(?:deadline|closing date|fecha l[ií]mite|data l[ií]mit)\s*[:\-]?\s*(\d{4}-\d{2}-\d{2})`)

// Recorder はフェッチ関連のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordFeedFetch(result string)
	RecordFetchLatency(d time.Duration)
	RecordGrantsDiscovered(count int)
}

// Fetcher は資金提供元フィードをHTTPで取得し、新しい公募をmonitoring状態で登録する。
// ETag/Last-Modifiedによる条件付きGETとSSRF検証を行い、
// 公募はcall_documentation_urlで重複排除する。
type Fetcher struct {
	grants      repository.GrantRepository
	guard       security.URLGuard
	recorder    Recorder
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	interval    time.Duration
	now         func() time.Time
}

// NewFetcher はFetcherを生成する。intervalは成功後の次回フェッチまでの間隔。
func NewFetcher(
	grants repository.GrantRepository,
	guard security.URLGuard,
	recorder Recorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	interval time.Duration,
) *Fetcher {
	return &Fetcher{
		grants:      grants,
		guard:       guard,
		recorder:    recorder,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		interval:    interval,
		now:         time.Now,
	}
}

// Fetch はソースを1回フェッチし、登録した公募の件数を返す。
// HTTPやパースの失敗はソースの状態に反映し、エラーとして返す。
func (f *Fetcher) Fetch(ctx context.Context, src *Source) (int, error) {
	start := time.Now()
	defer func() {
		f.recorder.RecordFetchLatency(time.Since(start))
	}()

	if err := f.guard.ValidateURL(src.URL); err != nil {
		src.applyStop(fmt.Sprintf("blocked url: %s", err.Error()))
		f.recorder.RecordFeedFetch(ResultBlocked)
		f.logger.Error("funding feed url rejected",
			slog.String("feed_url", src.URL),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("funding feed url rejected: %w", err)
	}

	client := f.guard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Grantdesk/1.0 funding monitor")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	etag, lastModified := src.validators()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		src.applyBackoff(f.now(), fmt.Sprintf("request failed: %s", err.Error()))
		f.recorder.RecordFeedFetch(ResultHTTPError)
		f.logger.Warn("funding feed request failed",
			slog.String("feed_url", src.URL),
			slog.Int("consecutive_errors", src.ConsecutiveErrors()),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("funding feed request failed: %w", err)
	}
	defer resp.Body.Close()

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
	case FetchResultNotModified:
		src.applySuccess(f.now(), f.interval)
		f.recorder.RecordFeedFetch(ResultNotModified)
		f.logger.Info("funding feed not modified",
			slog.String("feed_url", src.URL),
		)
		return 0, nil
	case FetchResultStop:
		src.applyStop(fmt.Sprintf("stopped after HTTP status %d", resp.StatusCode))
		f.recorder.RecordFeedFetch(ResultHTTPError)
		f.logger.Warn("funding feed stopped",
			slog.String("feed_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		return 0, fmt.Errorf("funding feed returned status %d", resp.StatusCode)
	default:
		src.applyBackoff(f.now(), fmt.Sprintf("HTTP status %d", resp.StatusCode))
		f.recorder.RecordFeedFetch(ResultHTTPError)
		f.logger.Warn("funding feed backing off",
			slog.String("feed_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", src.ConsecutiveErrors()),
		)
		return 0, fmt.Errorf("funding feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		src.applyBackoff(f.now(), fmt.Sprintf("read failed: %s", err.Error()))
		f.recorder.RecordFeedFetch(ResultHTTPError)
		return 0, fmt.Errorf("failed to read funding feed: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		src.applyParseFailure(f.now(), f.interval, err.Error())
		f.recorder.RecordFeedFetch(ResultParseError)
		f.logger.Warn("funding feed parse failed",
			slog.String("feed_url", src.URL),
			slog.Bool("stopped", src.Stopped()),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to parse funding feed: %w", err)
	}
	src.setValidators(resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"))

	created := 0
	for _, item := range parsed.Items {
		grant := toGrant(parsed, item, f.now())
		if grant == nil {
			continue
		}
		ok, err := f.createIfNew(ctx, grant)
		if err != nil {
			// ストア障害時は次回のフェッチで再試行する
			src.applyBackoff(f.now(), err.Error())
			f.recorder.RecordFeedFetch(ResultHTTPError)
			return created, err
		}
		if ok {
			created++
		}
	}

	src.applySuccess(f.now(), f.interval)
	f.recorder.RecordFeedFetch(ResultOK)
	f.recorder.RecordGrantsDiscovered(created)
	f.logger.Info("funding feed fetched",
		slog.String("feed_url", src.URL),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("grants_created", created),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return created, nil
}

func (f *Fetcher) createIfNew(ctx context.Context, grant *model.GrantOpportunity) (bool, error) {
	existing, err := f.grants.FindByDocumentationURL(ctx, grant.CallDocumentationURL)
	if err != nil {
		return false, fmt.Errorf("failed to look up grant: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if err := f.grants.Create(ctx, grant); err != nil {
		return false, fmt.Errorf("failed to create grant: %w", err)
	}
	return true, nil
}

// toGrant はフィード記事を登録用の公募に変換する。リンクのない記事はnilを返す。
func toGrant(feed *gofeed.Feed, item *gofeed.Item, now time.Time) *model.GrantOpportunity {
	if item == nil {
		return nil
	}
	link := strings.TrimSpace(item.Link)
	if link == "" && (strings.HasPrefix(item.GUID, "https://") || strings.HasPrefix(item.GUID, "http://")) {
		link = item.GUID
	}
	title := strings.TrimSpace(PlainText(item.Title))
	if link == "" || title == "" {
		return nil
	}

	description := item.Description
	if description == "" {
		description = item.Content
	}
	text := PlainText(description)

	source := strings.TrimSpace(feed.Title)
	if item.Author != nil && item.Author.Name != "" {
		source = item.Author.Name
	}
	if source == "" {
		source = "Unknown"
	}

	deadline, estimated := extractDeadline(text, item, now)
	notes := "Discovered from funding feed " + strings.TrimSpace(feed.Title)
	if estimated {
		notes += ". Deadline estimated, verify against the call documentation."
	}

	var thematic string
	if len(item.Categories) > 0 {
		thematic = strings.Join(item.Categories, ", ")
	}

	return &model.GrantOpportunity{
		FundingSource:        truncateRunes(source, 200),
		ProgramTitle:         truncateRunes(title, 300),
		ApplicationDeadline:  deadline,
		EligibilityCriteria:  text,
		ThematicArea:         truncateRunes(thematic, 200),
		Status:               model.GrantStatusMonitoring,
		CallDocumentationURL: link,
		Notes:                notes,
	}
}

// extractDeadline は本文中の "Deadline: YYYY-MM-DD" 形式の日付を締切とする。
// 見つからない場合は公開日時（なければnow）から既定期間後を仮の締切とし、estimated=trueを返す。
func extractDeadline(text string, item *gofeed.Item, now time.Time) (time.Time, bool) {
	if m := deadlinePattern.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse(time.DateOnly, m[1]); err == nil {
			return t.Add(23*time.Hour + 59*time.Minute), false
		}
	}
	base := now
	if item.PublishedParsed != nil {
		base = *item.PublishedParsed
	}
	return base.Add(defaultDeadlineWindow).UTC(), true
}
