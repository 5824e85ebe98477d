package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"off", zerolog.Disabled},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInitWithWriter_JSON(t *testing.T) {
	defer func() { _ = Close() }()

	var buf bytes.Buffer
	if err := InitWithWriter(LogConfig{Level: "debug", Format: "json"}, &buf); err != nil {
		t.Fatalf("InitWithWriter failed: %v", err)
	}

	componentLog := Component("dashscope")
	componentLog.Info().Str("model", "qwen-max").Msg("request sent")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if entry["component"] != "dashscope" {
		t.Errorf("component = %v, want dashscope", entry["component"])
	}
	if entry["model"] != "qwen-max" {
		t.Errorf("model = %v, want qwen-max", entry["model"])
	}
}

func TestSetLevel(t *testing.T) {
	defer func() { _ = Close() }()
	defer SetLevel("info")

	var buf bytes.Buffer
	if err := InitWithWriter(LogConfig{Level: "info", Format: "json"}, &buf); err != nil {
		t.Fatalf("InitWithWriter failed: %v", err)
	}

	Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	SetLevel("debug")
	Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing after SetLevel: %q", buf.String())
	}
}

func TestInitWithFile(t *testing.T) {
	defer func() { _ = Close() }()

	logPath := filepath.Join(t.TempDir(), "qwenlink.log")
	var buf bytes.Buffer
	if err := InitWithWriter(LogConfig{Level: "info", Format: "json", File: logPath}, &buf); err != nil {
		t.Fatalf("InitWithWriter failed: %v", err)
	}

	Infof("hello %s", "file")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file = %q, want it to contain message", string(data))
	}
}

func TestInitInvalidFile(t *testing.T) {
	err := Init(LogConfig{Level: "info", File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	if err == nil {
		t.Fatal("expected error for unwritable log path")
	}
}
