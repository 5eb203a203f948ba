package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if !logger.Core().Enabled(-1) {
			t.Error("debug logger should enable debug level")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger.Core().Enabled(-1) {
			t.Error("production logger should not enable debug level")
		}
		_ = logger.Sync()
	})

	t.Run("custom output path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		logger, err := NewLogger(false, path)
		if err != nil {
			t.Fatalf("NewLogger error: %v", err)
		}
		logger.Info("hello")
		_ = logger.Sync()
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(b), `"service":"insurepal"`) || !strings.Contains(string(b), `"msg":"hello"`) {
			t.Errorf("unexpected log output: %s", b)
		}
	})
}
