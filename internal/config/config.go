package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 認証プロバイダーの種類。
const (
	AuthProviderSupabase = "supabase"
	AuthProviderOIDC     = "oidc"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// 空の場合もサーバーは起動し、ユーザーストアは利用不可として扱う。
	DatabaseURL    string
	DBConnectRetry time.Duration

	// Identity provider
	AuthProvider    string
	SupabaseURL     string
	SupabaseAnonKey string
	OIDCIssuer      string
	OIDCClientID    string
	VerifyTimeout   time.Duration
	StoreTimeout    time.Duration

	// One-time tokens
	RedisURL           string
	StateTTL           time.Duration
	StateSweepInterval time.Duration

	// Google Drive
	GoogleDriveClientID     string
	GoogleDriveClientSecret string
	GoogleDriveRedirectURL  string

	// LLM
	LLMAPIURL  string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Storage
	StorageDir       string
	StoragePublicURL string

	// Fetch
	FundingFeedURLs    []string
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	FetchInterval      time.Duration

	// Reminder / Cleanup
	ReminderDaysAhead         int
	NotificationRetentionDays int

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAI      int

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// CORS
	CORSAllowedOrigins []string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// どの変数が必須かはAUTH_PROVIDERによって変わる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.AuthProvider = strings.ToLower(getEnvString("AUTH_PROVIDER", AuthProviderSupabase))
	switch cfg.AuthProvider {
	case AuthProviderSupabase:
		cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
		if cfg.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
		if cfg.SupabaseAnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
	case AuthProviderOIDC:
		cfg.OIDCIssuer = os.Getenv("OIDC_ISSUER")
		if cfg.OIDCIssuer == "" {
			missing = append(missing, "OIDC_ISSUER")
		}
		cfg.OIDCClientID = os.Getenv("OIDC_CLIENT_ID")
		if cfg.OIDCClientID == "" {
			missing = append(missing, "OIDC_CLIENT_ID")
		}
	default:
		return nil, fmt.Errorf("unsupported AUTH_PROVIDER: %q", cfg.AuthProvider)
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DBConnectRetry = getEnvDuration("DB_CONNECT_RETRY", 10*time.Second)
	cfg.VerifyTimeout = getEnvDuration("VERIFY_TIMEOUT", 5*time.Second)
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 3*time.Second)

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.StateTTL = getEnvDuration("STATE_TTL", 10*time.Minute)
	cfg.StateSweepInterval = getEnvDuration("STATE_SWEEP_INTERVAL", 5*time.Minute)

	cfg.GoogleDriveClientID = os.Getenv("GOOGLE_DRIVE_CLIENT_ID")
	cfg.GoogleDriveClientSecret = os.Getenv("GOOGLE_DRIVE_CLIENT_SECRET")
	cfg.GoogleDriveRedirectURL = getEnvString("GOOGLE_DRIVE_REDIRECT_URL", strings.TrimRight(cfg.BaseURL, "/")+"/drive/callback")

	cfg.LLMAPIURL = getEnvString("LLM_API_URL", "https://api.openai.com/v1")
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.LLMModel = getEnvString("LLM_MODEL", "gpt-4o-mini")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 60*time.Second)

	cfg.StorageDir = getEnvString("STORAGE_DIR", "./data/uploads")
	cfg.StoragePublicURL = getEnvString("STORAGE_PUBLIC_URL", strings.TrimRight(cfg.BaseURL, "/")+"/files")

	cfg.FundingFeedURLs = getEnvList("FUNDING_FEED_URLS")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 4)
	cfg.FetchInterval = getEnvDuration("FETCH_INTERVAL", time.Hour)

	cfg.ReminderDaysAhead = getEnvInt("REMINDER_DAYS_AHEAD", 30)
	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 90)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAI = getEnvInt("RATE_LIMIT_AI", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	return cfg, nil
}

// DriveEnabled はGoogle Drive連携の資格情報が設定されているかを返す。
func (c *Config) DriveEnabled() bool {
	return c.GoogleDriveClientID != "" && c.GoogleDriveClientSecret != ""
}

// LLMEnabled はAIレポート生成のAPIキーが設定されているかを返す。
func (c *Config) LLMEnabled() bool {
	return c.LLMAPIKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
