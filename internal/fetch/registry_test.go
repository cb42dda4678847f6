package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/any-hub/artifact-cache/internal/resolver"
)

const sampleProject = `{
  "info": {"name": "Foo_Bar"},
  "releases": {
    "1.0.0": [
      {"filename": "foo_bar-1.0.0.tar.gz", "url": "URL/files/foo_bar-1.0.0.tar.gz", "packagetype": "sdist"},
      {"filename": "foo_bar-1.0.0-py3-none-any.whl", "url": "URL/files/foo_bar-1.0.0-py3-none-any.whl", "packagetype": "bdist_wheel"}
    ],
    "1.1.0": [
      {"filename": "foo_bar-1.1.0.tar.gz", "url": "URL/files/foo_bar-1.1.0.tar.gz", "packagetype": "sdist", "yanked": true}
    ],
    "not-a-version!": [
      {"filename": "junk.whl", "url": "URL/files/junk.whl", "packagetype": "bdist_wheel"}
    ],
    "2.0.0": []
  }
}`

func newTestRegistry(t *testing.T, url string, retries int) *HTTPRegistry {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewHTTPRegistry(RegistryOptions{
		IndexURL:       url,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		Logger:         logger,
	})
}

func TestHTTPRegistryVersions(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleProject))
	}))
	defer srv.Close()

	vm, err := newTestRegistry(t, srv.URL, 0).Versions(context.Background(), "Foo.Bar")
	if err != nil {
		t.Fatalf("versions failed: %v", err)
	}
	if gotPath != "/pypi/foo-bar/json" {
		t.Fatalf("unexpected request path %s", gotPath)
	}
	if gotUA == "" {
		t.Fatalf("expected user agent header")
	}
	if vm.Len() != 2 {
		t.Fatalf("expected 2 parsable versions with files, got %d", vm.Len())
	}

	d, ok := vm.Get(resolver.MustParseVersion("1.0.0"))
	if !ok || d.Kind != resolver.DistKindWheel || d.Filename != "foo_bar-1.0.0-py3-none-any.whl" {
		t.Fatalf("expected wheel preferred for 1.0.0, got %+v", d)
	}
	d, ok = vm.Get(resolver.MustParseVersion("1.1.0"))
	if !ok || d.Kind != resolver.DistKindSource || !d.Yanked {
		t.Fatalf("expected yanked sdist for 1.1.0, got %+v", d)
	}
}

func TestHTTPRegistryLogsSkippedVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"info": {"name": "demo"}, "releases": {
  "1.0.0": [{"filename": "demo-1.0.0-py3-none-any.whl", "url": "u", "packagetype": "bdist_wheel"}],
  "1.2.3.4": [{"filename": "demo-1.2.3.4-py3-none-any.whl", "url": "u", "packagetype": "bdist_wheel"}],
  "2023.3.post1": [{"filename": "demo-2023.3.post1.tar.gz", "url": "u", "packagetype": "sdist"}]
}}`))
	}))
	defer srv.Close()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	registry := NewHTTPRegistry(RegistryOptions{IndexURL: srv.URL, Logger: logger})

	vm, err := registry.Versions(context.Background(), "demo")
	if err != nil {
		t.Fatalf("versions failed: %v", err)
	}
	if vm.Len() != 1 {
		t.Fatalf("expected only 1.0.0 to parse, got %d versions", vm.Len())
	}
	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message != "跳过无法解析的版本" {
			continue
		}
		found = true
		if entry.Data["skipped"] != 2 {
			t.Fatalf("expected skipped count 2, got %v", entry.Data["skipped"])
		}
	}
	if !found {
		t.Fatalf("skipped versions should be logged")
	}
}

func TestHTTPRegistryNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestRegistry(t, srv.URL, 3).Versions(context.Background(), "missing")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestHTTPRegistryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleProject))
	}))
	defer srv.Close()

	vm, err := newTestRegistry(t, srv.URL, 3).Versions(context.Background(), "foo-bar")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 || vm.Len() != 2 {
		t.Fatalf("unexpected calls=%d versions=%d", calls.Load(), vm.Len())
	}
}

func TestHTTPRegistryGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := newTestRegistry(t, srv.URL, 2).Versions(context.Background(), "foo"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", calls.Load())
	}
}

func TestHTTPRegistryDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("wheel-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dist := &resolver.Dist{
		Name:     "foo",
		Version:  resolver.MustParseVersion("1.0.0"),
		Filename: "foo-1.0.0-py3-none-any.whl",
		URL:      srv.URL + "/files/foo-1.0.0-py3-none-any.whl",
	}
	if err := newTestRegistry(t, srv.URL, 0).Download(context.Background(), dist, dir); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, dist.Filename))
	if err != nil || string(data) != "wheel-bytes" {
		t.Fatalf("unexpected downloaded content %q err=%v", data, err)
	}
}

func TestNewUpstreamClientUsesTimeout(t *testing.T) {
	if c := NewUpstreamClient(45 * time.Second); c.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", c.Timeout)
	}
	if c := NewUpstreamClient(0); c.Timeout != DefaultUpstreamTimeout {
		t.Fatalf("expected default timeout, got %s", c.Timeout)
	}
}
