// Package browser drives a Chrome instance over the DevTools protocol to save
// report files the way a browser tab would: the download goes through
// Chrome's own download manager into a configured directory.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	// DebuggerURL attaches to an already running Chrome. When empty a new
	// instance is launched.
	DebuggerURL string
	// Launch is the Chrome binary followed by extra flags.
	Launch            []string
	Headless          bool
	DownloadDir       string
	NavigationTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		DownloadDir:       "downloads",
		NavigationTimeout: 30 * time.Second,
	}
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

// Downloader saves files through Chrome. It is safe for concurrent use;
// downloads are serialized because Chrome's download behavior is browser-wide.
type Downloader struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
	launched   *launcher.Launcher
}

// NewDownloader creates a downloader. Chrome is started lazily on the first
// download or by Start.
func NewDownloader(cfg Config, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome or launches a new one.
func (d *Downloader) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked(ctx)
}

func (d *Downloader) startLocked(ctx context.Context) error {
	// A connection that no longer answers Browser.getVersion is dropped. A
	// Chrome we launched ourselves is assumed dead and started again below.
	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		d.logger.Warn("Chrome not responding, reconnecting", zap.String("control_url", d.controlURL))
		_ = d.disconnectLocked()
		if d.launched != nil {
			d.launched.Cleanup()
			d.launched = nil
		}
	}

	controlURL := d.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(d.cfg.Headless)
		if len(d.cfg.Launch) > 0 {
			l = l.Bin(d.cfg.Launch[0])
			for _, rawFlag := range d.cfg.Launch[1:] {
				flagStr := strings.TrimLeft(rawFlag, "-")
				name, val, hasVal := strings.Cut(flagStr, "=")
				if hasVal {
					l = l.Set(flags.Flag(name), val)
				} else {
					l = l.Set(flags.Flag(name))
				}
			}
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		d.launched = l
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	// Detach from the start context so later downloads are bounded by their
	// own contexts only.
	d.browser = b.Context(context.Background())
	d.controlURL = controlURL
	d.logger.Info("Browser connected", zap.Bool("launched", d.launched != nil))
	return nil
}

// ControlURL returns the DevTools WebSocket URL, empty before Start.
func (d *Downloader) ControlURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controlURL
}

// Download navigates a fresh page to rawURL and waits for Chrome to finish
// saving the file, which is then renamed to the server-suggested name.
func (d *Downloader) Download(ctx context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.startLocked(ctx); err != nil {
		return err
	}

	dir, err := filepath.Abs(d.cfg.DownloadDir)
	if err != nil {
		return fmt.Errorf("resolve download dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	b := d.browser.Context(ctx)
	wait := b.WaitDownload(dir)

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	// Navigating to an attachment aborts the navigation itself; that error
	// is expected and the download proceeds.
	if err := page.Timeout(d.cfg.navigationTimeout()).Navigate(rawURL); err != nil {
		d.logger.Debug("Navigation ended", zap.String("url", rawURL), zap.Error(err))
	}

	info := wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("download %s: %w", rawURL, ctxErr)
	}
	if info == nil {
		return errors.New("download did not start")
	}

	saved := filepath.Join(dir, info.GUID)
	name := filepath.Base(info.SuggestedFilename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil
	}
	if err := os.Rename(saved, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename download: %w", err)
	}
	d.logger.Info("Browser download complete", zap.String("file", name))
	return nil
}

// Shutdown closes the browser. A Chrome launched by Start is terminated.
func (d *Downloader) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.disconnectLocked()
	if d.launched != nil {
		d.launched.Cleanup()
		d.launched = nil
	}
	return err
}

// disconnectLocked closes the DevTools connection, if any.
func (d *Downloader) disconnectLocked() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	d.controlURL = ""
	return err
}
