package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_WritesToRotatingFile(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	path := filepath.Join(t.TempDir(), "wallet.log")
	closer := Setup(Options{File: path, MaxSizeMB: 1, MaxAgeDays: 1})

	log.Printf("level=info component=test msg=\"hello\"")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "component=test") {
		t.Fatalf("expected log line in file, got %q", raw)
	}
}

func TestSetup_StdoutOnly(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	if err := Setup(Options{}).Close(); err != nil {
		t.Fatalf("expected no-op close, got %v", err)
	}
}
