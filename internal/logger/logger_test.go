package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelInfo).Info("grant fetched", slog.Int64("grant_id", 42))

	entry := decodeLine(t, &buf)
	if entry["msg"] != "grant fetched" || entry["grant_id"] != float64(42) || entry["service"] != "grantdesk" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("time field missing")
	}
}

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be dropped at warn level: %s", buf.String())
	}
	l.Warn("kept")
	if entry := decodeLine(t, &buf); entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
}

func TestSetup_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, slog.LevelDebug).Debug("drive token refreshed",
		slog.String("Authorization", "Bearer eyJhbGciOi"),
		slog.Group("drive", slog.String("refresh_token", "1//0g-secret"), slog.Int64("user_id", 7)),
		slog.String("subject", "sub-123"),
	)

	if strings.Contains(buf.String(), "eyJhbGciOi") || strings.Contains(buf.String(), "1//0g-secret") {
		t.Fatalf("credential leaked: %s", buf.String())
	}

	entry := decodeLine(t, &buf)
	if entry["Authorization"] != redacted {
		t.Errorf("Authorization = %v", entry["Authorization"])
	}
	drive, _ := entry["drive"].(map[string]any)
	if drive["refresh_token"] != redacted || drive["user_id"] != float64(7) {
		t.Errorf("drive = %v", drive)
	}
	if entry["subject"] != "sub-123" {
		t.Errorf("subject should not be redacted: %v", entry["subject"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("LOG_LEVEL", "error")

	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Warn("below threshold")
	slog.Error("store unavailable", slog.String("outcome", "store_unavailable"))

	entry := decodeLine(t, &buf)
	if entry["msg"] != "store unavailable" || entry["outcome"] != "store_unavailable" {
		t.Errorf("entry = %v", entry)
	}
}
