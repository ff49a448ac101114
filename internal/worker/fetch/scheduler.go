// Package fetch は資金提供元フィードのバックグラウンド取得を提供する。
// スケジューラ、フェッチャー、リトライ/バックオフ戦略を含む。
package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SourceFetcher はソース1件のフェッチを実行するインターフェース。
type SourceFetcher interface {
	Fetch(ctx context.Context, src *Source) (int, error)
}

// Scheduler はフィードフェッチのスケジューリングと並列制御を行う。
// ティッカーごとに期限の来たソースを選び、semaphoreで最大並列数を制御しながらフェッチする。
type Scheduler struct {
	sources        []*Source
	fetcher        SourceFetcher
	logger         *slog.Logger
	maxConcurrency int
	now            func() time.Time
}

// NewScheduler はSchedulerを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(sources []*Source, fetcher SourceFetcher, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		sources:        sources,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// Start はintervalごとにRunOnceを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("fetch scheduler started",
		slog.Duration("interval", interval),
		slog.Int("sources", len(s.sources)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("fetch scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は期限の来たソースを並列でフェッチし、登録した公募の合計件数を返す。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := s.now()

	due := make([]*Source, 0, len(s.sources))
	for _, src := range s.sources {
		if src.Due(start) {
			due = append(due, src)
		}
	}
	if len(due) == 0 {
		s.logger.Debug("no funding feeds due")
		return 0
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)

	for _, src := range due {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(src *Source) {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := s.fetcher.Fetch(ctx, src)
			if err != nil {
				s.logger.Error("funding feed fetch failed",
					slog.String("feed_url", src.URL),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	s.logger.Info("fetch cycle completed",
		slog.Int("feed_count", len(due)),
		slog.Int("grants_created", total),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return total
}
