// Package warm 模拟解析器的回溯过程预热缓存：对每个包依次“尝试”多个版本，
// 由 BatchPrefetcher 决定何时批量推测下载后续版本。
package warm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/artifact-cache/internal/resolver"
)

// DefaultDepth 为每个包默认尝试的版本数。
const DefaultDepth = 20

// Options 控制预热行为。
type Options struct {
	// Depth 为每个包最多尝试的版本数。
	Depth  int
	Logger logrus.FieldLogger
}

// PackageReport 汇总单个包的预热结果。
type PackageReport struct {
	Package string `json:"package"`
	Status  string `json:"status"`
	Tried   int    `json:"tried"`
	Error   string `json:"error,omitempty"`
}

// Warmer 驱动解析器式的版本尝试循环。不可并发调用 Warm。
type Warmer struct {
	index      *resolver.InMemoryIndex
	sink       resolver.RequestSender
	selector   resolver.CandidateSelector
	prefetcher *resolver.BatchPrefetcher
	depth      int
	logger     logrus.FieldLogger
}

// New 创建 Warmer。sink 的消费方（通常是 fetch.Pool）需由调用方启动。
func New(
	index *resolver.InMemoryIndex,
	sink resolver.RequestSender,
	selector resolver.CandidateSelector,
	prefetcher *resolver.BatchPrefetcher,
	opts Options,
) *Warmer {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Warmer{
		index:      index,
		sink:       sink,
		selector:   selector,
		prefetcher: prefetcher,
		depth:      opts.Depth,
		logger:     opts.Logger,
	}
}

// Warm 依次预热 names。单个包失败只记录在报告中；ctx 取消或 sink 关闭时返回错误。
func (w *Warmer) Warm(ctx context.Context, names []string) ([]PackageReport, error) {
	reports := make([]PackageReport, 0, len(names))
	for _, name := range names {
		report, err := w.warmPackage(ctx, resolver.NewPackage(name))
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (w *Warmer) warmPackage(ctx context.Context, pkg resolver.Package) (PackageReport, error) {
	report := PackageReport{Package: pkg.Name}
	logger := w.logger.WithFields(logrus.Fields{"action": "warm", "package": pkg.Name})

	if w.index.Packages.Register(pkg.Name) {
		if err := w.sink.Send(ctx, resolver.Request{Kind: resolver.RequestPackage, Package: pkg.Name}); err != nil {
			return report, &resolver.ResolveError{Op: "warm", Package: pkg.Name, Err: err}
		}
	}
	response, ok, err := w.index.Packages.Wait(ctx, pkg.Name)
	if err != nil {
		return report, err
	}
	if !ok {
		return report, &resolver.ResolveError{Op: "warm", Package: pkg.Name, Err: resolver.ErrUnregistered}
	}
	report.Status = response.Kind.String()
	if response.Kind != resolver.VersionsFound {
		if response.Err != nil {
			report.Error = response.Err.Error()
		}
		logger.WithField("status", report.Status).Warn("无法获取版本列表，跳过预热")
		return report, nil
	}

	rng := resolver.Full()
	for report.Tried < w.depth {
		candidate := w.selector.SelectNoPreference(pkg.Name, rng, response.Map)
		if candidate == nil {
			break
		}
		w.prefetcher.VersionTried(pkg)
		report.Tried++

		if err := w.request(ctx, pkg, candidate); err != nil {
			return report, err
		}
		if err := w.prefetcher.PrefetchBatches(ctx, pkg, candidate.Version, rng, w.sink, w.index, w.selector); err != nil {
			return report, err
		}
		// 视为该版本冲突，从候选区间中剔除后继续回溯。
		rng = rng.Intersection(resolver.Singleton(candidate.Version).Complement())
	}

	logger.WithField("tried", report.Tried).Debug("包预热完成")
	return report, nil
}

// request 为当前尝试的版本本身发起下载。
func (w *Warmer) request(ctx context.Context, pkg resolver.Package, candidate *resolver.Candidate) error {
	dist := candidate.Dist.Dist
	if !candidate.Dist.Compatible || !dist.Prefetchable() {
		return nil
	}
	if !w.index.Distributions.Register(dist.PackageID()) {
		return nil
	}
	req := resolver.Request{Kind: resolver.RequestDist, Package: pkg.Name, Dist: dist}
	if dist.Installed {
		req.Kind = resolver.RequestInstalled
	}
	if err := w.sink.Send(ctx, req); err != nil {
		return &resolver.ResolveError{Op: "warm", Package: pkg.Name, Err: fmt.Errorf("%s: %w", dist.PackageID(), err)}
	}
	return nil
}
