package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/grantdesk/internal/auth"
	"github.com/hitoshi/grantdesk/internal/config"
	"github.com/hitoshi/grantdesk/internal/database"
	"github.com/hitoshi/grantdesk/internal/drive"
	"github.com/hitoshi/grantdesk/internal/handler"
	"github.com/hitoshi/grantdesk/internal/logger"
	"github.com/hitoshi/grantdesk/internal/metrics"
	"github.com/hitoshi/grantdesk/internal/middleware"
	"github.com/hitoshi/grantdesk/internal/onetime"
	"github.com/hitoshi/grantdesk/internal/report"
	"github.com/hitoshi/grantdesk/internal/repository"
	"github.com/hitoshi/grantdesk/internal/security"
	"github.com/hitoshi/grantdesk/internal/storage"
	"github.com/hitoshi/grantdesk/internal/user"
	"github.com/hitoshi/grantdesk/internal/worker/cleanup"
	fetchpkg "github.com/hitoshi/grantdesk/internal/worker/fetch"
	"github.com/hitoshi/grantdesk/internal/worker/reminder"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数の設定を読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck("http://localhost:" + port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("auth_provider", cfg.AuthProvider),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// apiServer はserveモードで起動するHTTPハンドラーと、停止時に解放するリソースをまとめる。
type apiServer struct {
	router   http.Handler
	registry *prometheus.Registry
	closers  []func()
}

// Close は確保したリソースを逆順に解放する。
func (s *apiServer) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newVerifier はAUTH_PROVIDERに応じたTokenVerifierを生成する。
// OIDCの場合はディスカバリのために発行者へ接続する。
func newVerifier(ctx context.Context, cfg *config.Config) (auth.TokenVerifier, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderOIDC:
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.VerifyTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to set up oidc verifier: %w", err)
		}
		return v, nil
	default:
		return auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.VerifyTimeout), nil
	}
}

// newStateStore はREDIS_URLが設定されていればRedis、なければメモリ上のワンタイムトークンストアを返す。
func newStateStore(cfg *config.Config) (onetime.Store, func(), error) {
	if cfg.RedisURL == "" {
		store := onetime.NewMemoryStore(cfg.StateSweepInterval)
		return store, store.Stop, nil
	}
	client, err := onetime.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up redis: %w", err)
	}
	return onetime.NewRedisStore(client), func() { _ = client.Close() }, nil
}

// buildAPIServer は全依存関係をワイヤリングしてAPIのルーターを構築する。
// データベースには接続しない。最初にリポジトリが使われた時点でpoolが接続する。
func buildAPIServer(ctx context.Context, cfg *config.Config, pool *database.Pool) (*apiServer, error) {
	srv := &apiServer{registry: metrics.NewRegistry()}
	collector := metrics.NewCollector(srv.registry)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(pool)
	grantRepo := repository.NewPostgresGrantRepo(pool)
	applicationRepo := repository.NewPostgresApplicationRepo(pool)
	documentRepo := repository.NewPostgresDocumentRepo(pool)
	notificationRepo := repository.NewPostgresNotificationRepo(pool)
	reportRepo := repository.NewPostgresReportRepo(pool)
	organizationRepo := repository.NewPostgresOrganizationRepo(pool)

	// 2. 認証パイプライン
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	identities := auth.NewIdentityStore(userRepo, cfg.StoreTimeout)
	builder := auth.NewSessionContextBuilder(verifier, identities, cfg.VerifyTimeout, collector)

	// 3. ドメインサービスの初期化
	states, closeStates, err := newStateStore(cfg)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, closeStates)

	driveClient := drive.NewClient(drive.Config{
		ClientID:     cfg.GoogleDriveClientID,
		ClientSecret: cfg.GoogleDriveClientSecret,
		RedirectURL:  cfg.GoogleDriveRedirectURL,
	})
	fileStore := storage.NewFileSystem(cfg.StorageDir, cfg.StoragePublicURL)
	driveService := drive.NewService(driveClient, drive.Repositories{
		Users:        userRepo,
		Applications: applicationRepo,
		Documents:    documentRepo,
	}, fileStore, states, cfg.StateTTL)

	llm := report.NewChatClient(report.ChatConfig{
		BaseURL: cfg.LLMAPIURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	reportService := report.NewService(applicationRepo, grantRepo, documentRepo, reportRepo, llm, security.NewReportSanitizer())

	userService := user.NewService(userRepo, slog.Default())

	// 4. ルーターの構築（RATE_LIMIT_*はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAI))
	srv.closers = append(srv.closers, rateLimiter.Stop)

	srv.router = handler.NewRouter(&handler.RouterDeps{
		ContextBuilder:     builder,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		Metrics:            collector,
		Logger:             slog.Default(),
		HealthChecker:      pool,

		Users:         userRepo,
		Grants:        grantRepo,
		Applications:  applicationRepo,
		Documents:     documentRepo,
		Notifications: notificationRepo,
		Organizations: organizationRepo,

		UserService:   userService,
		DriveService:  handler.NewDriveServiceAdapter(driveService),
		ReportService: handler.NewReportServiceAdapter(reportService),
	})

	slog.Info("api wired",
		slog.Bool("drive_enabled", cfg.DriveEnabled()),
		slog.Bool("llm_enabled", cfg.LLMEnabled()),
		slog.Bool("redis_state_store", cfg.RedisURL != ""),
	)
	return srv, nil
}

// runServe はAPIサーバーモードで起動する。
// データベースが利用できなくても起動し、認証済みユーザーを必要としない操作は応答を続ける。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	pool := database.NewPool(cfg.DatabaseURL, cfg.DBConnectRetry)
	defer pool.Close()
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set; identity store and repositories are unavailable")
	}

	srv, err := buildAPIServer(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // レポート生成のLLM呼び出しを含む
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(srv.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	for _, s := range []*http.Server{server, metricsServer} {
		go func(s *http.Server) {
			slog.Info("http server starting", slog.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen on %s: %w", s.Addr, err)
			}
		}(s)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("server listen error", slog.String("error", err.Error()))
		return err
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = metricsServer.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 公募フィードのフェッチスケジューラ、リマインダー、既読通知のクリーンアップを実行する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("worker requires DATABASE_URL")
	}
	pool := database.NewPool(cfg.DatabaseURL, cfg.DBConnectRetry)
	defer pool.Close()

	// 1. リポジトリの初期化
	grantRepo := repository.NewPostgresGrantRepo(pool)
	documentRepo := repository.NewPostgresDocumentRepo(pool)
	notificationRepo := repository.NewPostgresNotificationRepo(pool)

	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(registry)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// 2. ジョブの初期化
	fetcher := fetchpkg.NewFetcher(
		grantRepo, security.NewSSRFGuard(), collector,
		slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize, cfg.FetchInterval,
	)
	scheduler := fetchpkg.NewScheduler(
		fetchpkg.NewSources(cfg.FundingFeedURLs), fetcher, slog.Default(), cfg.FetchMaxConcurrent,
	)
	reminderJob := reminder.NewJob(grantRepo, documentRepo, notificationRepo, collector, slog.Default(), cfg.ReminderDaysAhead)
	cleanupJob := cleanup.NewCleanupJob(notificationRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.NotificationRetentionDays

	slog.Info("worker starting",
		slog.Int("feed_sources", len(cfg.FundingFeedURLs)),
		slog.Duration("fetch_interval", cfg.FetchInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// リマインダーとクリーンアップを日次でバックグラウンド実行
	go runDaily(ctx, "reminder", func(ctx context.Context) error {
		_, err := reminderJob.Run(ctx)
		return err
	})
	go runDaily(ctx, "cleanup", func(ctx context.Context) error {
		_, err := cleanupJob.Run(ctx)
		return err
	})

	// フェッチスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.FetchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runDaily は起動直後に1回、その後24時間ごとにjobを実行する。
func runDaily(ctx context.Context, name string, job func(context.Context) error) {
	run := func() {
		if err := job(ctx); err != nil {
			slog.Error("job failed", slog.String("job", name), slog.String("error", err.Error()))
		}
	}
	run()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	v, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed", slog.Uint64("schema_version", uint64(v.Version)))
	return nil
}

// runHealthcheck はbaseURLの /health にHTTPリクエストを送り、結果を返す。
// コンテナのヘルスチェック用サブコマンド。
func runHealthcheck(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	return u.Redacted()
}
