package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.LogLevel
		wantErr bool
	}{
		{in: "debug", want: logger.DEBUG},
		{in: "INFO", want: logger.INFO},
		{in: "warn", want: logger.WARNING},
		{in: "warning", want: logger.WARNING},
		{in: "error", want: logger.ERROR},
		{in: "critical", want: logger.CRITICAL},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := New("server", &buf)

	l.Infof("listening on %d", 8910)

	line := buf.String()
	if !strings.Contains(line, "INFO  | server          | listening on 8910") {
		t.Errorf("unexpected log line %q", line)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New("client", &buf)
	l.SetLevel(logger.WARNING)

	l.Debugf("hidden")
	l.Infof("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below WARNING, got %q", buf.String())
	}

	l.Warningf("shown")
	l.Errorf("shown too")
	if got := strings.Count(buf.String(), "shown"); got != 2 {
		t.Errorf("got %d lines at or above WARNING, want 2", got)
	}
}

func TestLogger_Panicf(t *testing.T) {
	l := New("netif", &bytes.Buffer{})
	l.SetLevel(logger.CRITICAL)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Panicf did not panic")
		}
	}()
	l.Panicf("boom %d", 1)
}

func TestLogger_PanicfWritesLine(t *testing.T) {
	var buf bytes.Buffer
	l := New("transport", &buf)

	func() {
		defer func() {
			if r := recover(); r != "closed twice" {
				t.Errorf("recovered %v, want %q", r, "closed twice")
			}
		}()
		l.Panicf("closed %s", "twice")
	}()

	if !strings.Contains(buf.String(), "CRIT  | transport       | closed twice") {
		t.Errorf("unexpected log line %q", buf.String())
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init("loud"); err == nil {
		t.Error("Init() with invalid level returned nil error")
	}
}
