package resolver

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/artifact-cache/internal/metrics"
)

const (
	// maxBatchSize 为单批最多推测的版本数。
	maxBatchSize = 50
	// steadyInterval 超过 20 次尝试后，每新增 20 次再触发一批。
	steadyInterval = 20
)

type strategyPhase int

const (
	phaseCompatible strategyPhase = iota
	phaseInOrder
)

func (p strategyPhase) String() string {
	if p == phaseInOrder {
		return "in_order"
	}
	return "compatible"
}

// batchStrategy 为单个批次内的候选遍历状态。compatible 先在当前约束内逐个挑选，
// 耗尽后切换为 inOrder，从 previous 起按解析方向逐个向外推进，不会再切回。
type batchStrategy struct {
	phase      strategyPhase
	compatible Range
	previous   Version
}

// advance 计算一步转移。返回 nil 候选且 done=false 表示本步只发生了阶段切换。
func (s batchStrategy) advance(name string, versions *VersionMap, selector CandidateSelector) (batchStrategy, *Candidate, bool) {
	switch s.phase {
	case phaseCompatible:
		candidate := selector.SelectNoPreference(name, s.compatible, versions)
		if candidate == nil {
			return batchStrategy{phase: phaseInOrder, previous: s.previous}, nil, false
		}
		return batchStrategy{
			phase:      phaseCompatible,
			compatible: s.compatible.Intersection(Singleton(candidate.Version).Complement()),
			previous:   candidate.Version,
		}, candidate, false
	default:
		var rng Range
		if selector.UseHighestVersion(name) {
			rng = StrictlyLowerThan(s.previous)
		} else {
			rng = StrictlyHigherThan(s.previous)
		}
		candidate := selector.SelectNoPreference(name, rng, versions)
		if candidate == nil {
			return s, nil, true
		}
		return batchStrategy{phase: phaseInOrder, previous: candidate.Version}, candidate, false
	}
}

// BatchPrefetcher 在某个包被反复回溯时，推测性地批量请求更多版本的元数据。
// 仅由解析循环单协程调用，不做并发保护。
type BatchPrefetcher struct {
	triedVersions map[Package]int
	lastPrefetch  map[Package]int

	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

// NewBatchPrefetcher 创建预取器；logger 为 nil 时使用 logrus 标准 logger，metrics 可为 nil。
func NewBatchPrefetcher(logger logrus.FieldLogger, m *metrics.Metrics) *BatchPrefetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BatchPrefetcher{
		triedVersions: make(map[Package]int),
		lastPrefetch:  make(map[Package]int),
		logger:        logger,
		metrics:       m,
	}
}

// VersionTried 记录解析器为 pkg 尝试了一个版本。
func (p *BatchPrefetcher) VersionTried(pkg Package) {
	p.triedVersions[pkg]++
}

// ShouldPrefetch 返回当前尝试次数以及是否应触发一批：在 5、10、20 次时各触发一次，
// 此后每比上一批多 20 次再触发。
func (p *BatchPrefetcher) ShouldPrefetch(pkg Package) (int, bool) {
	tried := p.triedVersions[pkg]
	previous := p.lastPrefetch[pkg]
	do := (tried >= 5 && previous < 5) ||
		(tried >= 10 && previous < 10) ||
		(tried >= 20 && previous < 20) ||
		(tried >= steadyInterval && tried-previous >= steadyInterval)
	return tried, do
}

// PrefetchBatches 在需要时为 next 发送一批推测请求。非 PackageKindPackage 节点、
// 未到触发阈值或版本表不是 Found 时直接返回 nil。
func (p *BatchPrefetcher) PrefetchBatches(
	ctx context.Context,
	next Package,
	version Version,
	currentRange Range,
	sink RequestSender,
	index *InMemoryIndex,
	selector CandidateSelector,
) error {
	if next.Kind != PackageKindPackage {
		return nil
	}

	tried, do := p.ShouldPrefetch(next)
	if !do {
		return nil
	}
	total := min(tried, maxBatchSize)

	// 版本表此时必然已获取，Wait 立即返回。
	response, ok, err := index.Packages.Wait(ctx, next.Name)
	if err != nil {
		return &ResolveError{Op: "prefetch", Package: next.Name, Err: err}
	}
	if !ok {
		return &ResolveError{Op: "prefetch", Package: next.Name, Err: ErrUnregistered}
	}
	if response.Kind != VersionsFound {
		return nil
	}

	p.metrics.ObservePrefetchBatch()
	state := batchStrategy{phase: phaseCompatible, compatible: currentRange, previous: version}
	count := 0
	for i := 0; i < total; i++ {
		var (
			candidate *Candidate
			done      bool
		)
		state, candidate, done = state.advance(next.Name, response.Map, selector)
		if done {
			break
		}
		if candidate == nil {
			continue
		}

		if !candidate.Dist.Compatible {
			continue
		}
		dist := candidate.Dist.Dist
		// 源码包需要构建，不做推测。
		if !dist.Prefetchable() {
			continue
		}

		p.logger.WithFields(logrus.Fields{
			"package":  next.Name,
			"version":  candidate.Version.String(),
			"strategy": state.phase.String(),
			"index":    count,
		}).Trace("预取候选版本")
		count++

		if !index.Distributions.Register(dist.PackageID()) {
			continue
		}
		req := Request{Kind: RequestDist, Package: next.Name, Dist: dist}
		if dist.Installed {
			req.Kind = RequestInstalled
		}
		if err := sink.Send(ctx, req); err != nil {
			return &ResolveError{Op: "prefetch", Package: next.Name, Err: err}
		}
		p.metrics.ObservePrefetchRequest(state.phase.String())
	}

	p.logger.WithFields(logrus.Fields{
		"package": next.Name,
		"count":   count,
		"tried":   tried,
	}).Debug("批量预取版本")

	p.lastPrefetch[next] = tried
	return nil
}
