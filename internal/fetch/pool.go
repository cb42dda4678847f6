package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/any-hub/artifact-cache/internal/cache"
	"github.com/any-hub/artifact-cache/internal/metrics"
	"github.com/any-hub/artifact-cache/internal/resolver"
)

// DefaultConcurrency 为未配置时的并发 worker 数。
const DefaultConcurrency = 8

// Pool 消费 RequestSink 中的请求，经由缓存或上游获取结果并写回 InMemoryIndex。
type Pool struct {
	cache       *cache.Cache
	registry    Registry
	index       *resolver.InMemoryIndex
	concurrency int
	offline     bool
	logger      logrus.FieldLogger
	metrics     *metrics.Metrics
}

// PoolOptions 为 NewPool 的可选参数。
type PoolOptions struct {
	Concurrency int
	// Offline 时不访问上游，只使用缓存中已有的条目（无论新鲜与否）。
	Offline bool
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// NewPool 创建 fetch pool。
func NewPool(c *cache.Cache, registry Registry, index *resolver.InMemoryIndex, opts PoolOptions) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Pool{
		cache:       c,
		registry:    registry,
		index:       index,
		concurrency: opts.Concurrency,
		offline:     opts.Offline,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Run 持续处理请求，直到 sink 关闭或 ctx 取消；返回前等待所有在途请求结束。
// 单个请求失败不会中止 Run，错误会写入对应的索引槽位。
func (p *Pool) Run(ctx context.Context, sink *resolver.RequestSink) error {
	workers := pool.New().WithMaxGoroutines(p.concurrency)
	defer workers.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sink.Done():
			// 关闭前已入队的请求仍需处理，否则其等待方永远无法完成。
			for {
				select {
				case req := <-sink.Requests():
					workers.Go(func() { p.handle(ctx, req) })
				default:
					return nil
				}
			}
		case req := <-sink.Requests():
			workers.Go(func() {
				p.handle(ctx, req)
			})
		}
	}
}

// Handle 同步处理单个请求，供不经过 sink 的调用方使用。
func (p *Pool) Handle(ctx context.Context, req resolver.Request) {
	p.handle(ctx, req)
}

func (p *Pool) handle(ctx context.Context, req resolver.Request) {
	switch req.Kind {
	case resolver.RequestPackage:
		p.fetchPackage(ctx, req.Package)
	case resolver.RequestDist, resolver.RequestInstalled:
		p.fetchDist(ctx, req.Dist)
	default:
		p.logger.WithField("request", req.String()).Warn("忽略未知请求类型")
	}
}

func (p *Pool) fetchPackage(ctx context.Context, name string) {
	name = cache.NormalizePackageName(name)
	logger := p.logger.WithFields(logrus.Fields{"action": "fetch_versions", "package": name})
	entry := p.cache.Entry(cache.BucketSimple, string(cache.WheelCacheKindPypi), cache.SimpleEntryName(name))

	freshness, err := p.cache.Freshness(entry, name)
	if err != nil {
		logger.WithError(err).Warn("读取缓存新鲜度失败")
		freshness = cache.Missing
	}
	if freshness.IsFresh() || (p.offline && freshness.IsStale()) {
		vm, err := p.readVersions(ctx, entry)
		if err == nil {
			logger.Debug("版本表命中缓存")
			p.metrics.ObserveFetch("package", "cache")
			p.index.Packages.Done(name, resolver.VersionsResponse{Kind: resolver.VersionsFound, Map: vm})
			return
		}
		if !errors.Is(err, cache.ErrNotFound) {
			logger.WithError(err).Warn("缓存版本表损坏，重新获取")
		}
	}

	if p.offline {
		p.metrics.ObserveFetch("package", "offline")
		p.index.Packages.Done(name, resolver.VersionsResponse{Kind: resolver.VersionsOffline})
		return
	}

	vm, err := p.registry.Versions(ctx, name)
	switch {
	case errors.Is(err, ErrPackageNotFound):
		logger.Info("索引中不存在该包")
		p.metrics.ObserveFetch("package", "not_found")
		p.index.Packages.Done(name, resolver.VersionsResponse{Kind: resolver.VersionsNotFound})
		return
	case err != nil:
		logger.WithError(err).Error("拉取版本表失败")
		p.metrics.ObserveFetch("package", "error")
		p.index.Packages.Done(name, resolver.VersionsResponse{Kind: resolver.VersionsFailed, Err: err})
		return
	}

	if _, err := p.cache.WriteEntry(ctx, entry, bytes.NewReader(MarshalVersionMap(name, vm)), cache.WriteOptions{}); err != nil {
		// 写缓存失败不影响本次解析。
		logger.WithError(err).Warn("写入版本表缓存失败")
	}
	logger.WithField("versions", vm.Len()).Debug("版本表已更新")
	p.metrics.ObserveFetch("package", "ok")
	p.index.Packages.Done(name, resolver.VersionsResponse{Kind: resolver.VersionsFound, Map: vm})
}

func (p *Pool) readVersions(ctx context.Context, entry cache.CacheEntry) (*resolver.VersionMap, error) {
	result, err := p.cache.ReadEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	defer result.Reader.Close()

	data, err := io.ReadAll(result.Reader)
	if err != nil {
		return nil, err
	}
	_, vm, err := UnmarshalVersionMap(data)
	return vm, err
}

func (p *Pool) fetchDist(ctx context.Context, dist *resolver.Dist) {
	if dist == nil {
		return
	}
	id := dist.PackageID()
	logger := p.logger.WithFields(logrus.Fields{"action": "fetch_dist", "dist": id})

	if dist.Installed {
		p.metrics.ObserveFetch("installed", "ok")
		p.index.Distributions.Done(id, resolver.DistResult{Dist: dist, Path: dist.Path})
		return
	}

	name := cache.NormalizePackageName(dist.Name)
	dest := p.cache.Shard(cache.BucketWheels, string(cache.WheelCacheKindPypi)).
		Shard(name).
		Entry(strings.TrimSuffix(filepath.Base(dist.Filename), ".whl")).
		Path()

	freshness, err := p.cache.Freshness(cache.CacheEntryFromPath(dest), name)
	if err == nil && (freshness.IsFresh() || (p.offline && freshness.IsStale())) {
		if _, statErr := os.Stat(dest); statErr == nil {
			logger.Debug("分发包命中缓存")
			p.metrics.ObserveFetch("dist", "cache")
			p.index.Distributions.Done(id, resolver.DistResult{Dist: dist, Path: dest})
			return
		}
	}
	if p.offline {
		p.metrics.ObserveFetch("dist", "offline")
		p.index.Distributions.Done(id, resolver.DistResult{Dist: dist, Err: fmt.Errorf("%s: offline and not cached", id)})
		return
	}

	path, err := p.download(ctx, dist, dest)
	if err != nil {
		logger.WithError(err).Error("下载分发包失败")
		p.metrics.ObserveFetch("dist", "error")
		p.index.Distributions.Done(id, resolver.DistResult{Dist: dist, Err: err})
		return
	}
	logger.WithField("path", path).Debug("分发包已缓存")
	p.metrics.ObserveFetch("dist", "ok")
	p.index.Distributions.Done(id, resolver.DistResult{Dist: dist, Path: dest})
}

// download 在缓存根目录下的临时目录中下载并写入 sidecar 元数据，然后发布到 dest。
// 临时目录与缓存同卷，保证 Persist 的 rename 是原子的。
func (p *Pool) download(ctx context.Context, dist *resolver.Dist, dest string) (string, error) {
	tmp := filepath.Join(p.cache.Root(), ".tmp-"+xid.New().String())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := p.registry.Download(ctx, dist, tmp); err != nil {
		return "", err
	}
	meta := cache.MarshalDistMetadata(cache.DistMetadata{Name: dist.Name, Version: dist.Version.String()})
	if err := os.WriteFile(filepath.Join(tmp, cache.SidecarMetadataFile), meta, 0o644); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	archive, err := p.cache.Persist(ctx, tmp, dest)
	if err != nil {
		return "", err
	}
	cleanup = false
	p.metrics.ObservePersist()
	return archive, nil
}
