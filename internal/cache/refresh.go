package cache

import (
	"fmt"
	"sort"
	"strings"
)

// RefreshKind 区分三种刷新策略。
type RefreshKind int

const (
	RefreshKindNone RefreshKind = iota
	RefreshKindPackages
	RefreshKindAll
)

// Refresh 是用户请求的失效策略：None、Packages(set, cutoff) 或 All(cutoff)。
// 构造后不可变，整个会话共享。
type Refresh struct {
	kind     RefreshKind
	packages map[string]struct{}
	cutoff   Timestamp
}

// RefreshNone 不做任何再验证。
func RefreshNone() Refresh {
	return Refresh{kind: RefreshKindNone}
}

// RefreshAll 要求所有早于 cutoff 的条目再验证。
func RefreshAll(cutoff Timestamp) Refresh {
	return Refresh{kind: RefreshKindAll, cutoff: cutoff}
}

// RefreshPackages 仅要求 packages 中的包在 cutoff 之前的条目再验证。
func RefreshPackages(packages []string, cutoff Timestamp) Refresh {
	set := make(map[string]struct{}, len(packages))
	for _, name := range packages {
		if normalized := NormalizePackageName(name); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return Refresh{kind: RefreshKindPackages, packages: set, cutoff: cutoff}
}

// RefreshFromArgs 按 CLI 语义构造策略：refresh 优先，其次是包列表，否则 None。
func RefreshFromArgs(refresh bool, packages []string, now Timestamp) Refresh {
	switch {
	case refresh:
		return RefreshAll(now)
	case len(packages) > 0:
		return RefreshPackages(packages, now)
	default:
		return RefreshNone()
	}
}

// Kind 返回策略类型。
func (r Refresh) Kind() RefreshKind {
	return r.kind
}

// Cutoff 返回截止时间；None 时为零值。
func (r Refresh) Cutoff() Timestamp {
	return r.cutoff
}

// IsNone 表示不做任何再验证。
func (r Refresh) IsNone() bool {
	return r.kind == RefreshKindNone
}

// Packages 返回排序后的包列表。
func (r Refresh) Packages() []string {
	if len(r.packages) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.packages))
	for name := range r.packages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r Refresh) contains(name string) bool {
	_, ok := r.packages[NormalizePackageName(name)]
	return ok
}

func (r Refresh) String() string {
	switch r.kind {
	case RefreshKindAll:
		return fmt.Sprintf("all(%s)", r.cutoff)
	case RefreshKindPackages:
		return fmt.Sprintf("packages[%s](%s)", strings.Join(r.Packages(), ","), r.cutoff)
	default:
		return "none"
	}
}

// Freshness 是一次新鲜度检查的结果。
type Freshness int

const (
	Fresh Freshness = iota
	Stale
	Missing
)

// IsFresh 表示条目可直接复用。
func (f Freshness) IsFresh() bool {
	return f == Fresh
}

// IsStale 表示条目存在但早于截止时间。
func (f Freshness) IsStale() bool {
	return f == Stale
}

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}
