package resolver

import (
	"github.com/any-hub/artifact-cache/internal/oncemap"
)

// VersionsKind 表示版本表获取结果。
type VersionsKind int

const (
	VersionsFound VersionsKind = iota
	VersionsNotFound
	VersionsNoIndex
	VersionsOffline
	VersionsFailed
)

func (k VersionsKind) String() string {
	switch k {
	case VersionsFound:
		return "found"
	case VersionsNotFound:
		return "not-found"
	case VersionsNoIndex:
		return "no-index"
	case VersionsOffline:
		return "offline"
	default:
		return "failed"
	}
}

// VersionsResponse 为 Packages 表中的值；只有 Found 携带版本表，Failed 携带错误。
type VersionsResponse struct {
	Kind VersionsKind
	Map  *VersionMap
	Err  error
}

// DistResult 为 Distributions 表中的值。
type DistResult struct {
	Dist *Dist
	Path string
	Err  error
}

// InMemoryIndex 为解析期间共享的去重索引。
type InMemoryIndex struct {
	Packages      *oncemap.OnceMap[string, VersionsResponse]
	Distributions *oncemap.OnceMap[string, DistResult]
}

// NewInMemoryIndex 创建空索引。
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		Packages:      oncemap.New[string, VersionsResponse](),
		Distributions: oncemap.New[string, DistResult](),
	}
}
