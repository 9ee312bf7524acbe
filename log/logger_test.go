package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelSilent, "SILENT"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %s, 期望 %s", tt.level, got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" Info ", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"off", LevelSilent, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, 期望出错 %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, 期望 %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	if logger != Nop() {
		t.Error("Nop() 应返回相同实例")
	}

	logger.Debug("test %s", "debug")
	logger.Info("test %s", "info")
	logger.Warn("test %s", "warn")
	logger.Error("test %s", "error")
}

func TestStdLoggerLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewStdLogger(WithWriter(buf), WithLevel(LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("低于 Warn 的级别不应该输出: %s", output)
	}
	if !strings.Contains(output, "WARN") || !strings.Contains(output, "ERROR") {
		t.Errorf("Warn/Error 级别应该输出: %s", output)
	}
}

func TestStdLoggerPrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	NewStdLogger(WithWriter(buf), WithLevel(LevelDebug)).Debug("connect %d", 1)
	if !strings.Contains(buf.String(), "[asio2] DEBUG connect 1") {
		t.Errorf("默认前缀缺失: %s", buf.String())
	}

	buf.Reset()
	NewStdLogger(WithWriter(buf), WithPrefix("")).Info("plain")
	if strings.Contains(buf.String(), "[asio2]") {
		t.Errorf("空前缀不应输出默认前缀: %s", buf.String())
	}
}

func TestStdLoggerSilentLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewStdLogger(WithWriter(buf), WithLevel(LevelSilent))

	logger.Error("error")
	if buf.Len() > 0 {
		t.Errorf("Silent 级别不应有任何输出，实际: %s", buf.String())
	}
}

func TestNamedLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewStdLogger(WithWriter(buf), WithLevel(LevelDebug))

	l := Named(Named(base, "client"), "c-1")
	l.Info("state %s", "started")

	if !strings.Contains(buf.String(), "[client/c-1] state started") {
		t.Errorf("命名前缀不正确: %s", buf.String())
	}

	if _, ok := Named(Nop(), "x").(NopLogger); !ok {
		t.Error("Named(Nop) 应保持静默实现")
	}
	if _, ok := Named(nil, "x").(NopLogger); !ok {
		t.Error("Named(nil) 应返回静默实现")
	}
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = NopLogger{}
	var _ Logger = &StdLogger{}
	var _ Logger = &named{}
}
