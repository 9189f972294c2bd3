package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDownloadHTTP(t *testing.T) {
	payload := zipBytes(t, map[string]string{"stud.csv": "a,b\n1,2\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stud.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "dl", "data.zip")
	d := NewDownloader()
	require.NoError(t, d.Download(context.Background(), srv.URL+"/stud.zip", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	err = d.Download(context.Background(), srv.URL+"/missing.zip", filepath.Join(t.TempDir(), "x.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "data.zip")
	d := NewDownloader()
	d.Register("boom", FetcherFunc(func(context.Context, *url.URL, io.Writer) error {
		return assert.AnError
	}))

	err := d.Download(context.Background(), "boom://x", dest)
	require.ErrorIs(t, err, assert.AnError)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadFileScheme(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.zip")
	require.NoError(t, os.WriteFile(src, []byte("zipdata"), 0644))

	dest := filepath.Join(dir, "out", "data.zip")
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(src)}
	require.NoError(t, NewDownloader().Download(context.Background(), u.String(), dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zipdata", string(got))
}

func TestDownloadUnsupportedScheme(t *testing.T) {
	err := NewDownloader().Download(context.Background(), "ftp://host/x.zip", filepath.Join(t.TempDir(), "x.zip"))
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestUnzip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	require.NoError(t, os.WriteFile(archive, zipBytes(t, map[string]string{
		"stud.csv":        "a,b\n1,2\n",
		"nested/note.txt": "hello",
	}), 0644))

	out := filepath.Join(dir, "out")
	files, err := Unzip(archive, out)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(out, "stud.csv"),
		filepath.Join(out, "nested", "note.txt"),
	}, files)

	body, err := os.ReadFile(filepath.Join(out, "stud.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))

	// Re-extraction overwrites in place.
	_, err = Unzip(archive, out)
	require.NoError(t, err)
}

func TestUnzipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(archive, zipBytes(t, map[string]string{"../evil.txt": "x"}), 0644))

	_, err := Unzip(archive, filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, ErrUnsafeEntry)
	_, statErr := os.Stat(filepath.Join(dir, "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnzipNotAnArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	require.NoError(t, os.WriteFile(archive, []byte("not a zip"), 0644))

	_, err := Unzip(archive, dir)
	require.Error(t, err)
}
