package resolver

import (
	"sort"

	"github.com/any-hub/artifact-cache/internal/cache"
)

// DistKind 表示分发包的形态。
type DistKind int

const (
	DistKindWheel DistKind = iota
	DistKindSource
)

func (k DistKind) String() string {
	if k == DistKindSource {
		return "sdist"
	}
	return "wheel"
}

// Dist 描述一个可下载或已安装的分发包。
type Dist struct {
	Name     string
	Version  Version
	Filename string
	URL      string
	Kind     DistKind
	Yanked   bool

	// Installed 为 true 时 Path 指向 site-packages 中的 dist-info 目录。
	Installed bool
	Path      string

	// Incompatibility 非空时说明该版本不能用于当前平台/解释器。
	Incompatibility string
}

// Prefetchable 判断该分发包是否适合预取：源码包需要构建，不做推测性获取。
func (d *Dist) Prefetchable() bool {
	return d.Installed || d.Kind == DistKindWheel
}

// PackageID 返回 Distributions 去重表中的键。
func (d *Dist) PackageID() string {
	if d.Installed {
		return "installed:" + cache.NormalizePackageName(d.Name) + "==" + d.Version.String()
	}
	if d.URL != "" && d.Version == nil {
		return "url:" + d.URL
	}
	return cache.NormalizePackageName(d.Name) + "==" + d.Version.String()
}

// CandidateDist 为选择器为某个版本挑出的分发包及其兼容性。
type CandidateDist struct {
	Dist       *Dist
	Compatible bool
}

// Candidate 为一次选择的结果。
type Candidate struct {
	Name    string
	Version Version
	Dist    CandidateDist
}

type versionEntry struct {
	version Version
	dist    *Dist
}

// VersionMap 保存单个包已知的全部版本，按升序排列。
type VersionMap struct {
	entries []versionEntry
}

// NewVersionMap 以任意顺序的分发包构造版本表；同一版本保留第一个（调用方应把 wheel 放在前面）。
func NewVersionMap(dists ...*Dist) *VersionMap {
	vm := &VersionMap{}
	for _, d := range dists {
		vm.Insert(d)
	}
	return vm
}

// Insert 插入一个版本；已存在的版本不会被覆盖。
func (vm *VersionMap) Insert(d *Dist) bool {
	idx := sort.Search(len(vm.entries), func(i int) bool {
		return vm.entries[i].version.Compare(d.Version) >= 0
	})
	if idx < len(vm.entries) && vm.entries[idx].version.Equal(d.Version) {
		return false
	}
	vm.entries = append(vm.entries, versionEntry{})
	copy(vm.entries[idx+1:], vm.entries[idx:])
	vm.entries[idx] = versionEntry{version: d.Version, dist: d}
	return true
}

// Get 返回指定版本的分发包。
func (vm *VersionMap) Get(v Version) (*Dist, bool) {
	idx := sort.Search(len(vm.entries), func(i int) bool {
		return vm.entries[i].version.Compare(v) >= 0
	})
	if idx < len(vm.entries) && vm.entries[idx].version.Equal(v) {
		return vm.entries[idx].dist, true
	}
	return nil, false
}

// Versions 返回升序版本列表。
func (vm *VersionMap) Versions() []Version {
	out := make([]Version, len(vm.entries))
	for i, e := range vm.entries {
		out[i] = e.version
	}
	return out
}

// Dists 返回与 Versions 顺序一致的分发包。
func (vm *VersionMap) Dists() []*Dist {
	out := make([]*Dist, len(vm.entries))
	for i, e := range vm.entries {
		out[i] = e.dist
	}
	return out
}

// Len 返回版本数量。
func (vm *VersionMap) Len() int {
	if vm == nil {
		return 0
	}
	return len(vm.entries)
}
