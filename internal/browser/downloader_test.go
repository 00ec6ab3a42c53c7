package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.Equal(t, "downloads", cfg.DownloadDir)
	assert.Equal(t, 30*time.Second, cfg.navigationTimeout())
}

func TestConfig_NavigationTimeoutFallback(t *testing.T) {
	assert.Equal(t, 30*time.Second, Config{}.navigationTimeout())
	assert.Equal(t, 5*time.Second, Config{NavigationTimeout: 5 * time.Second}.navigationTimeout())
}

func TestDownloader_ShutdownBeforeStart(t *testing.T) {
	d := NewDownloader(DefaultConfig(), nil)
	assert.Empty(t, d.ControlURL())
	assert.NoError(t, d.Shutdown())
}

func TestDownloader_ShutdownIsRepeatable(t *testing.T) {
	d := NewDownloader(Config{DebuggerURL: "ws://127.0.0.1:1/devtools"}, nil)
	assert.NoError(t, d.Shutdown())
	assert.NoError(t, d.Shutdown())
	assert.Empty(t, d.ControlURL())
	assert.Nil(t, d.launched)
}
