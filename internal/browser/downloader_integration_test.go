//go:build integration

package browser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"agentdesk/internal/browser"
)

func TestDownloader_SavesAttachment_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report123.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4 test"))
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.DownloadDir = t.TempDir()
	cfg.NavigationTimeout = 10 * time.Second

	d := browser.NewDownloader(cfg, zaptest.NewLogger(t))
	defer func() {
		if err := d.Shutdown(); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	require.NoError(t, d.Start(ctx), "Failed to start browser")
	require.NotEmpty(t, d.ControlURL())

	require.NoError(t, d.Download(ctx, ts.URL+"/download-report-pdf/report123.pdf"))

	data, err := os.ReadFile(filepath.Join(cfg.DownloadDir, "report123.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 test", string(data))
}
