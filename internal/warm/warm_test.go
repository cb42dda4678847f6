package warm

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/any-hub/artifact-cache/internal/resolver"
)

func versions(name string, n int) *resolver.VersionMap {
	vm := resolver.NewVersionMap()
	for i := 0; i < n; i++ {
		raw := fmt.Sprintf("1.%d.0", i)
		vm.Insert(&resolver.Dist{
			Name:     name,
			Version:  resolver.MustParseVersion(raw),
			Filename: name + "-" + raw + "-py3-none-any.whl",
			Kind:     resolver.DistKindWheel,
		})
	}
	return vm
}

func newWarmer(index *resolver.InMemoryIndex, sink resolver.RequestSender, depth int) *Warmer {
	logger, _ := test.NewNullLogger()
	return New(index, sink, resolver.NewSelector(resolver.ResolutionHighest),
		resolver.NewBatchPrefetcher(logger, nil), Options{Depth: depth, Logger: logger})
}

func drain(sink *resolver.RequestSink) []resolver.Request {
	var out []resolver.Request
	for {
		select {
		case req := <-sink.Requests():
			out = append(out, req)
		default:
			return out
		}
	}
}

func TestWarmTriesVersionsAndPrefetches(t *testing.T) {
	index := resolver.NewInMemoryIndex()
	index.Packages.Register("demo")
	index.Packages.Done("demo", resolver.VersionsResponse{Kind: resolver.VersionsFound, Map: versions("demo", 30)})
	sink := resolver.NewRequestSink(100)

	reports, err := newWarmer(index, sink, 6).Warm(context.Background(), []string{"Demo"})
	if err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	if len(reports) != 1 || reports[0].Tried != 6 || reports[0].Status != "found" {
		t.Fatalf("unexpected reports %+v", reports)
	}

	// 第 5 次尝试触发一批 5 个：首个候选即当前版本，已请求过，不重复发送。
	reqs := drain(sink)
	want := []string{
		"1.29.0", "1.28.0", "1.27.0", "1.26.0", "1.25.0",
		"1.24.0", "1.23.0", "1.22.0", "1.21.0",
	}
	if len(reqs) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(reqs))
	}
	for i, req := range reqs {
		if req.Kind != resolver.RequestDist || req.Dist.Version.String() != want[i] {
			t.Fatalf("request %d: expected dist %s, got %s", i, want[i], req.String())
		}
	}
}

func TestWarmReportsMissingPackage(t *testing.T) {
	index := resolver.NewInMemoryIndex()
	index.Packages.Register("ghost")
	index.Packages.Done("ghost", resolver.VersionsResponse{Kind: resolver.VersionsNotFound})
	sink := resolver.NewRequestSink(10)

	reports, err := newWarmer(index, sink, 5).Warm(context.Background(), []string{"ghost"})
	if err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	if reports[0].Status != "not-found" || reports[0].Tried != 0 {
		t.Fatalf("unexpected report %+v", reports[0])
	}
	if reqs := drain(sink); len(reqs) != 0 {
		t.Fatalf("no request expected, got %d", len(reqs))
	}
}

// resolvingSender 模拟 fetch pool：收到版本请求后立刻写回索引。
type resolvingSender struct {
	index *resolver.InMemoryIndex
	sent  []resolver.Request
}

func (s *resolvingSender) Send(_ context.Context, req resolver.Request) error {
	s.sent = append(s.sent, req)
	if req.Kind == resolver.RequestPackage {
		s.index.Packages.Done(req.Package, resolver.VersionsResponse{Kind: resolver.VersionsFound, Map: versions(req.Package, 2)})
	}
	return nil
}

func TestWarmRequestsVersionsOnce(t *testing.T) {
	index := resolver.NewInMemoryIndex()
	sender := &resolvingSender{index: index}

	reports, err := newWarmer(index, sender, 10).Warm(context.Background(), []string{"pkg", "PKG"})
	if err != nil {
		t.Fatalf("warm failed: %v", err)
	}
	if len(reports) != 2 || reports[0].Tried != 2 || reports[1].Tried != 2 {
		t.Fatalf("unexpected reports %+v", reports)
	}
	packages := 0
	for _, req := range sender.sent {
		if req.Kind == resolver.RequestPackage {
			packages++
		}
	}
	// 第二次同名包只复用索引；两个版本各下载一次。
	if packages != 1 || len(sender.sent) != 3 {
		t.Fatalf("unexpected requests %d (package requests %d)", len(sender.sent), packages)
	}
}

func TestWarmStopsWhenSinkClosed(t *testing.T) {
	index := resolver.NewInMemoryIndex()
	sink := resolver.NewRequestSink(1)
	sink.Close()

	_, err := newWarmer(index, sink, 5).Warm(context.Background(), []string{"demo"})
	if err == nil {
		t.Fatalf("closed sink should abort warm")
	}
}
