package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// pypiStub 模拟 PyPI JSON API 与文件下载，记录各类请求次数。
type pypiStub struct {
	server   *http.Server
	listener net.Listener
	URL      string

	mu        sync.Mutex
	projects  map[string][]string
	jsonHits  map[string]int
	wheelHits map[string]int
}

func newPyPIStub(t *testing.T) *pypiStub {
	t.Helper()
	stub := &pypiStub{
		projects:  make(map[string][]string),
		jsonHits:  make(map[string]int),
		wheelHits: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/", stub.handleJSON)
	mux.HandleFunc("/packages/", stub.handleWheel)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start pypi stub: %v", err)
	}
	stub.server = &http.Server{Handler: mux}
	stub.listener = listener
	stub.URL = "http://" + listener.Addr().String()

	go func() {
		_ = stub.server.Serve(listener)
	}()
	t.Cleanup(stub.Close)
	return stub
}

// AddProject 注册一个只发布 wheel 的项目。
func (s *pypiStub) AddProject(name string, versions ...string) {
	s.mu.Lock()
	s.projects[name] = append([]string(nil), versions...)
	s.mu.Unlock()
}

func wheelFilename(name, version string) string {
	return fmt.Sprintf("%s-%s-py3-none-any.whl", name, version)
}

func (s *pypiStub) handleJSON(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/pypi/"), "/json")

	s.mu.Lock()
	s.jsonHits[name]++
	versions, ok := s.projects[name]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	releases := make(map[string][]map[string]any, len(versions))
	for _, v := range versions {
		filename := wheelFilename(name, v)
		releases[v] = []map[string]any{{
			"filename":    filename,
			"url":         fmt.Sprintf("%s/packages/%s/%s", s.URL, name, filename),
			"packagetype": "bdist_wheel",
			"yanked":      false,
		}}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"info":     map[string]string{"name": name},
		"releases": releases,
	})
}

func (s *pypiStub) handleWheel(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	s.mu.Lock()
	s.wheelHits[filename]++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write([]byte("wheel:" + filename))
}

func (s *pypiStub) JSONHits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jsonHits[name]
}

func (s *pypiStub) WheelDownloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.wheelHits {
		total += n
	}
	return total
}

func (s *pypiStub) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if s.server != nil {
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
