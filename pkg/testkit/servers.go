package testkit

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

// ArchiveServer serves payload at /stud.zip and counts the downloads.
type ArchiveServer struct {
	*httptest.Server
	hits atomic.Int64
}

// NewArchiveServer starts a server; callers must Close it.
func NewArchiveServer(payload []byte) *ArchiveServer {
	s := &ArchiveServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stud.zip" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.hits.Add(1)
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(payload)
	}))
	return s
}

// ArchiveURL is the download location of the payload.
func (s *ArchiveServer) ArchiveURL() string {
	return s.URL + "/stud.zip"
}

// Hits returns how many times the archive was downloaded.
func (s *ArchiveServer) Hits() int64 {
	return s.hits.Load()
}
