// Package metrics 定义缓存与预取相关的 Prometheus 指标；nil *Metrics 上的所有方法均为空操作。
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "artifact_cache"

// Metrics 持有独立的 Registry，避免与全局 DefaultRegisterer 冲突（测试中可多次创建）。
type Metrics struct {
	registry *prometheus.Registry

	removedFiles     *prometheus.CounterVec
	removedBytes     *prometheus.CounterVec
	persisted        prometheus.Counter
	prefetchBatches  prometheus.Counter
	prefetchRequests *prometheus.CounterVec
	fetches          *prometheus.CounterVec
}

// New 创建并注册全部指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		removedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_files_total",
			Help:      "Files removed from the cache, by operation.",
		}, []string{"op"}),
		removedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_bytes_total",
			Help:      "Bytes removed from the cache, by operation.",
		}, []string{"op"}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_total",
			Help:      "Artifacts published into the archive bucket.",
		}),
		prefetchBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_batches_total",
			Help:      "Prefetch batches triggered by the tried-count heuristic.",
		}),
		prefetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_requests_total",
			Help:      "Speculative fetch requests sent, by candidate strategy.",
		}, []string{"strategy"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Requests handled by the fetch pool, by kind and result.",
		}, []string{"kind", "result"}),
	}

	m.registry.MustRegister(
		m.removedFiles,
		m.removedBytes,
		m.persisted,
		m.prefetchBatches,
		m.prefetchRequests,
		m.fetches,
	)
	return m
}

// Registry 返回用于暴露 /metrics 的 Gatherer。
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRemoval 记录一次 remove/prune/clear 的删除量。
func (m *Metrics) ObserveRemoval(op string, files, bytes int64) {
	if m == nil {
		return
	}
	m.removedFiles.WithLabelValues(op).Add(float64(files))
	m.removedBytes.WithLabelValues(op).Add(float64(bytes))
}

// ObservePersist 记录一次产物发布。
func (m *Metrics) ObservePersist() {
	if m == nil {
		return
	}
	m.persisted.Inc()
}

// ObservePrefetchBatch 记录一次触发的预取批次。
func (m *Metrics) ObservePrefetchBatch() {
	if m == nil {
		return
	}
	m.prefetchBatches.Inc()
}

// ObservePrefetchRequest 记录一次实际发送的预取请求。
func (m *Metrics) ObservePrefetchRequest(strategy string) {
	if m == nil {
		return
	}
	m.prefetchRequests.WithLabelValues(strategy).Inc()
}

// ObserveFetch 记录 fetch pool 处理的一次请求。
func (m *Metrics) ObserveFetch(kind, result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(kind, result).Inc()
}

// Summary 汇总各计数器在所有标签上的总和，键为去掉命名空间前缀的指标名，用于 CLI 结束时打日志。
func (m *Metrics) Summary() map[string]float64 {
	out := make(map[string]float64)
	if m == nil {
		return out
	}
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, family := range families {
		name := strings.TrimPrefix(family.GetName(), namespace+"_")
		for _, metric := range family.GetMetric() {
			out[name] += metric.GetCounter().GetValue()
		}
	}
	return out
}
