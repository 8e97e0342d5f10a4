package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestOutputStreamDefaultsToStderr(t *testing.T) {
	if outputStream("") != os.Stderr {
		t.Fatalf("默认输出应为 stderr")
	}
	if outputStream("STDOUT") != os.Stdout {
		t.Fatalf("stdout 输出未生效")
	}
}

func TestLogWriterConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	w := logWriter(Config{Format: "console"}, &buf)
	if _, ok := w.(zerolog.ConsoleWriter); !ok {
		t.Fatalf("console 格式应返回 ConsoleWriter, got %T", w)
	}
	if logWriter(Config{}, &buf) != &buf {
		t.Fatalf("json 格式应直接写入输出")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(Config{Level: "WARN"})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("unexpected level %s", logger.GetLevel())
	}
	logger = NewLogger(Config{Level: "nonsense"})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("invalid level should fall back to info, got %s", logger.GetLevel())
	}
}
