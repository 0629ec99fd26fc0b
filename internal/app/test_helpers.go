package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/featuregate"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates an app instance for integration testing, capturing
// its debug log output.
func SetupAppTest(t *testing.T, appConfig *Config, loader config.Loader, mods ...featuregate.Module) (*App, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	appConfig.LogLevel = "debug"
	testApp, err := NewApp(logBuffer, appConfig, loader, mods...)
	if err != nil {
		t.Fatalf("NewApp failed: %v\n--- log ---\n%s", err, logBuffer.String())
	}

	t.Cleanup(func() {
		if os.Getenv("FRAMEGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
