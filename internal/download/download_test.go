package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSaver_SavesUsingDisposition(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../../evil/report123.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	saver := NewFileSaver(dir, ts.Client())

	dest, err := saver.Save(context.Background(), ts.URL+"/download-report-pdf/other.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report123.pdf"), dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestFileSaver_FallsBackToPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("body"))
	}))
	defer ts.Close()

	dir := filepath.Join(t.TempDir(), "nested")
	saver := NewFileSaver(dir, ts.Client())

	require.NoError(t, saver.Download(context.Background(), ts.URL+"/download-report-pdf/q3%20plan.pdf"))
	_, err := os.Stat(filepath.Join(dir, "q3 plan.pdf"))
	assert.NoError(t, err)
}

func TestFileSaver_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	dir := t.TempDir()
	saver := NewFileSaver(dir, ts.Client())
	err := saver.Download(context.Background(), ts.URL+"/download-report-pdf/missing.pdf")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial file should be left behind")
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		url         string
		want        string
		wantErr     bool
	}{
		{"disposition wins", `attachment; filename="a.pdf"`, "http://x/b.pdf", "a.pdf", false},
		{"bad disposition", `;;;`, "http://x/b.pdf", "b.pdf", false},
		{"path only", "", "http://x/dl/c.pdf", "c.pdf", false},
		{"root path", "", "http://x/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fileName(tt.disposition, tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Download(context.Background(), "http://a"))
	r.Err = errors.New("blocked")
	assert.Error(t, r.Download(context.Background(), "http://b"))
	assert.Equal(t, []string{"http://a", "http://b"}, r.URLs())
}

func TestFunc(t *testing.T) {
	var got string
	var d Downloader = Func(func(_ context.Context, url string) error {
		got = url
		return nil
	})
	require.NoError(t, d.Download(context.Background(), "http://c"))
	assert.Equal(t, "http://c", got)
}
