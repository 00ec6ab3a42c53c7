// Package download provides the "save the report at this URL" capability the
// session core triggers when an agent produces a report.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Downloader triggers a download of the resource at url.
type Downloader interface {
	Download(ctx context.Context, url string) error
}

// Func adapts a plain function to Downloader.
type Func func(ctx context.Context, url string) error

// Download calls f.
func (f Func) Download(ctx context.Context, url string) error { return f(ctx, url) }

// =============================================================================
// FILE SAVER
// =============================================================================

// FileSaver fetches the URL over HTTP and writes it into Dir.
type FileSaver struct {
	Dir    string
	Client *http.Client
}

// NewFileSaver creates a saver writing into dir. A nil client uses
// http.DefaultClient.
func NewFileSaver(dir string, client *http.Client) *FileSaver {
	if client == nil {
		client = http.DefaultClient
	}
	return &FileSaver{Dir: dir, Client: client}
}

// Download implements Downloader.
func (s *FileSaver) Download(ctx context.Context, rawURL string) error {
	_, err := s.Save(ctx, rawURL)
	return err
}

// Save fetches rawURL and returns the path of the written file.
func (s *FileSaver) Save(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	name, err := fileName(resp.Header.Get("Content-Disposition"), rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write download: %w", err)
	}

	dest := filepath.Join(s.Dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store download: %w", err)
	}
	return dest, nil
}

// fileName prefers the server-suggested name and falls back to the last
// path segment. Directory components are stripped.
func fileName(disposition, rawURL string) (string, error) {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := safeBase(params["filename"]); name != "" {
				return name, nil
			}
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url: %w", err)
	}
	if name := safeBase(path.Base(u.Path)); name != "" {
		return name, nil
	}
	return "", errors.New("cannot derive a file name from the download url")
}

func safeBase(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder remembers every URL it was asked for. If Err is set it is
// returned from each call.
type Recorder struct {
	mu   sync.Mutex
	urls []string
	Err  error
}

// Download implements Downloader.
func (r *Recorder) Download(_ context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	return r.Err
}

// URLs returns the recorded URLs in call order.
func (r *Recorder) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}
