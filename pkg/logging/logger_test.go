package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// lastLine decodes the most recent JSON log line in buf.
func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	if last == "" {
		t.Fatal("no log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(last), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", last, err)
	}
	return entry
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected a default output")
	}
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level   LogLevel
		emitted []zerolog.Level
		dropped []zerolog.Level
	}{
		{level: LevelDebug, emitted: []zerolog.Level{zerolog.DebugLevel, zerolog.ErrorLevel}},
		{level: LevelInfo, emitted: []zerolog.Level{zerolog.InfoLevel}, dropped: []zerolog.Level{zerolog.DebugLevel}},
		{level: LevelWarn, emitted: []zerolog.Level{zerolog.WarnLevel, zerolog.ErrorLevel}, dropped: []zerolog.Level{zerolog.DebugLevel, zerolog.InfoLevel}},
		{level: LevelError, emitted: []zerolog.Level{zerolog.ErrorLevel}, dropped: []zerolog.Level{zerolog.InfoLevel, zerolog.WarnLevel}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			for _, lvl := range tt.emitted {
				logger.WithLevel(lvl).Msg("kept " + lvl.String())
			}
			for _, lvl := range tt.dropped {
				logger.WithLevel(lvl).Msg("dropped " + lvl.String())
			}

			out := buf.String()
			for _, lvl := range tt.emitted {
				if !strings.Contains(out, "kept "+lvl.String()) {
					t.Errorf("%s message should be written at %s", lvl, tt.level)
				}
			}
			for _, lvl := range tt.dropped {
				if strings.Contains(out, "dropped "+lvl.String()) {
					t.Errorf("%s message should be filtered out at %s", lvl, tt.level)
				}
			}
		})
	}
}

func TestSetup_Service(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf, Service: "travel-gateway"})

	logger.Info().Msg("started")

	entry := lastLine(t, buf)
	if entry["service"] != "travel-gateway" {
		t.Errorf("service = %v, want travel-gateway", entry["service"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected a timestamp")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf, Pretty: true})

	logger.Info().Str("endpoint", "/api/weather").Msg("console line")

	out := strings.TrimSpace(buf.String())
	if !strings.Contains(out, "console line") {
		t.Errorf("Expected message in output, got %q", out)
	}
	if json.Valid([]byte(out)) {
		t.Error("pretty output should not be JSON")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":    LevelDebug,
		"DEBUG":    LevelDebug,
		" info ":   LevelInfo,
		"warning":  LevelWarn,
		"warn":     LevelWarn,
		"error":    LevelError,
		"":         LevelInfo,
		"verbose":  LevelInfo,
		"critical": LevelInfo,
	}

	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", input, got, want)
		}
	}

	if got := parseLevel(LevelWarn); got != zerolog.WarnLevel {
		t.Errorf("parseLevel(warn) = %v", got)
	}
	if got := parseLevel("invalid"); got != zerolog.InfoLevel {
		t.Errorf("parseLevel(invalid) = %v, want info", got)
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("travel-client")
	logger.Info().Str("endpoint", "/api/places").Msg("request")

	entry := lastLine(t, buf)
	if entry["component"] != "travel-client" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["endpoint"] != "/api/places" || entry["message"] != "request" {
		t.Errorf("entry = %v", entry)
	}
}

func TestWithRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	ctx := WithRequestID(context.Background(), "5f0c9a4e-8a51-4d55-9d8e-0d9b3c1c2a77")
	logger := FromContext(ctx, "fallback")
	logger.Warn().Msg("serving placeholder")

	entry := lastLine(t, buf)
	if entry["request_id"] != "5f0c9a4e-8a51-4d55-9d8e-0d9b3c1c2a77" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["component"] != "fallback" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := FromContext(context.Background(), "batch")
	logger.Info().Msg("no request logger")

	entry := lastLine(t, buf)
	if entry["component"] != "batch" {
		t.Errorf("component = %v", entry["component"])
	}
	if _, ok := entry["request_id"]; ok {
		t.Error("unexpected request_id")
	}
}
