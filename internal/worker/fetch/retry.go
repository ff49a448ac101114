package fetch

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop はフェッチ停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	initialBackoff        = 30 * time.Minute
	maxBackoff            = 12 * time.Hour
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == http.StatusOK:
		return FetchResultOK
	case statusCode == http.StatusNotModified:
		return FetchResultNotModified
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return FetchResultStop
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return FetchResultStop
	case statusCode == http.StatusTooManyRequests:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Source は監視対象の資金提供元フィードと、そのフェッチ状態を表す。
// 状態はプロセス内にのみ保持し、再起動で初期化される。
type Source struct {
	URL string

	mu                sync.Mutex
	etag              string
	lastModified      string
	consecutiveErrors int
	nextFetchAt       time.Time
	stopped           bool
	lastError         string
}

// NewSources はURLの一覧からSourceを生成する。
func NewSources(urls []string) []*Source {
	sources := make([]*Source, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, &Source{URL: u})
	}
	return sources
}

// Due はnowの時点でフェッチ対象かを返す。
func (s *Source) Due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && !now.Before(s.nextFetchAt)
}

// Stopped はフェッチが停止されているかを返す。
func (s *Source) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// LastError は直近のエラー内容を返す。
func (s *Source) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// ConsecutiveErrors は連続エラー回数を返す。
func (s *Source) ConsecutiveErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveErrors
}

func (s *Source) validators() (etag, lastModified string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.etag, s.lastModified
}

func (s *Source) setValidators(etag, lastModified string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if etag != "" {
		s.etag = etag
	}
	if lastModified != "" {
		s.lastModified = lastModified
	}
}

// applyStop はフェッチを停止する。
func (s *Source) applyStop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.lastError = reason
}

// applyBackoff は連続エラー回数をインクリメントし、指数バックオフで次回時刻を設定する。
func (s *Source) applyBackoff(now time.Time, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors++
	s.lastError = reason
	s.nextFetchAt = now.Add(CalculateBackoff(s.consecutiveErrors - 1))
}

// applySuccess は状態をリセットし、intervalの後を次回時刻とする。
func (s *Source) applySuccess(now time.Time, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors = 0
	s.lastError = ""
	s.nextFetchAt = now.Add(interval)
}

// applyParseFailure はパース失敗を記録する。閾値に達した場合はフェッチを停止する。
func (s *Source) applyParseFailure(now time.Time, interval time.Duration, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors++
	s.lastError = fmt.Sprintf("parse failure (%d consecutive): %s", s.consecutiveErrors, reason)
	s.nextFetchAt = now.Add(interval)
	if s.consecutiveErrors >= parseFailureThreshold {
		s.stopped = true
	}
}
