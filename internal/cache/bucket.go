package cache

import (
	"fmt"
	"strings"
)

// Bucket 是缓存根目录下按数据类型划分、带 schema 版本后缀的顶层命名空间。
// 提升版本后缀即可整体废弃旧条目，旧目录由 Prune 回收。
type Bucket int

const (
	// BucketWheels 存放下载的 wheel 及其元数据：{pypi,index/<idx>,url/<url>}/<name>/...
	BucketWheels Bucket = iota
	// BucketBuiltWheels 存放由源码包构建出的 wheel，另有 path/<path> 与 git/<repo>/<sha> 命名空间。
	BucketBuiltWheels
	// BucketFlatIndex 存放按 index URL 缓存的 flat index 响应，无法按包名定位。
	BucketFlatIndex
	// BucketGit 存放 git 仓库检出。
	BucketGit
	// BucketInterpreter 存放解释器探测结果。
	BucketInterpreter
	// BucketSimple 存放 simple API 响应：{pypi,url/<idx>}/<name>.<ext>
	BucketSimple
	// BucketArchive 是所有已发布产物的实际存储，其他 bucket 仅通过符号链接引用。
	BucketArchive
)

var bucketNames = map[Bucket]string{
	BucketWheels:      "wheels-v0",
	BucketBuiltWheels: "built-wheels-v2",
	BucketFlatIndex:   "flat-index-v0",
	BucketGit:         "git-v0",
	BucketInterpreter: "interpreter-v0",
	BucketSimple:      "simple-v6",
	BucketArchive:     "archive-v0",
}

// AllBuckets 返回全部 bucket，顺序固定。
func AllBuckets() []Bucket {
	return []Bucket{
		BucketWheels,
		BucketBuiltWheels,
		BucketFlatIndex,
		BucketGit,
		BucketInterpreter,
		BucketSimple,
		BucketArchive,
	}
}

// String 返回带版本后缀的目录名，例如 wheels-v0。
func (b Bucket) String() string {
	if name, ok := bucketNames[b]; ok {
		return name
	}
	return fmt.Sprintf("bucket(%d)", int(b))
}

// ParseBucket 根据目录名或不带版本的类型名（例如 "wheels"）查找 bucket。
func ParseBucket(raw string) (Bucket, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, b := range AllBuckets() {
		name := b.String()
		if normalized == name {
			return b, true
		}
		if idx := strings.LastIndex(name, "-v"); idx > 0 && normalized == name[:idx] {
			return b, true
		}
	}
	return 0, false
}

func isKnownBucketDir(name string) bool {
	for _, b := range AllBuckets() {
		if b.String() == name {
			return true
		}
	}
	return false
}

// WheelCacheKind 是 wheel 类 bucket 下的来源命名空间。
type WheelCacheKind string

const (
	WheelCacheKindPypi  WheelCacheKind = "pypi"
	WheelCacheKindIndex WheelCacheKind = "index"
	WheelCacheKindURL   WheelCacheKind = "url"
	WheelCacheKindPath  WheelCacheKind = "path"
	WheelCacheKindGit   WheelCacheKind = "git"
)

// SimpleEntryExt 是 Simple bucket 中每个包响应文件的扩展名。
const SimpleEntryExt = "msgpack"

// SimpleEntryName 返回包在 Simple bucket 中的文件名。
func SimpleEntryName(name string) string {
	return name + "." + SimpleEntryExt
}
