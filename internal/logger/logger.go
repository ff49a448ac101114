// Package logger はJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedKeys はどの階層にあっても値を出力しない属性キー。
// ベアラートークンやDriveのOAuthトークンが誤ってログに渡された場合に備える。
var redactedKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"id_token":      true,
	"client_secret": true,
	"password":      true,
	"api_key":       true,
}

const redacted = "[REDACTED]"

// ParseLevel はLOG_LEVEL形式の文字列（debug / info / warn / error）をslog.Levelに変換する。
// 不明な値はInfoとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup はserviceフィールド付きのJSONロガーを生成する。
// 資格情報を表すキーの値は常に伏せ字にする。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})
	return slog.New(handler).With(slog.String("service", "grantdesk"))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// SetupDefault はSetupのロガーをslogのデフォルトに設定する。
// wがnilならos.Stdoutに出力し、レベルは環境変数LOG_LEVELから読む。
func SetupDefault(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, ParseLevel(os.Getenv("LOG_LEVEL")))
	slog.SetDefault(logger)
	return logger
}
