package cache

import (
	"os"
	"path/filepath"
)

// 目录型源码的入口文件，其最新修改时间近似代表整个目录的修改时间。
var sourceEntrypoints = []string{"pyproject.toml", "setup.py", "setup.cfg"}

// ArchiveTimestamp 是构建源的修改时间：单文件为 Exact，目录为 Approximate。
// 比较只看包裹的时间点。
type ArchiveTimestamp struct {
	Timestamp Timestamp
	Exact     bool
}

// ArchiveTimestampFromPath 计算 path 的修改时间。目录下三个入口文件都不存在时返回 nil，
// 表示无法判断，而不是错误。
func ArchiveTimestampFromPath(path string) (*ArchiveTimestamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return &ArchiveTimestamp{Timestamp: TimestampFromInfo(info), Exact: true}, nil
	}

	candidates := make([]*Timestamp, 0, len(sourceEntrypoints))
	for _, name := range sourceEntrypoints {
		fi, err := os.Stat(filepath.Join(path, name))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		ts := TimestampFromInfo(fi)
		candidates = append(candidates, &ts)
	}

	latest := maxTimestamp(candidates...)
	if latest == nil {
		return nil, nil
	}
	return &ArchiveTimestamp{Timestamp: *latest}, nil
}

// ArchiveTimestampFromFile 返回单个文件的精确修改时间。
func ArchiveTimestampFromFile(path string) (ArchiveTimestamp, error) {
	ts, err := TimestampFromPath(path)
	if err != nil {
		return ArchiveTimestamp{}, err
	}
	return ArchiveTimestamp{Timestamp: ts, Exact: true}, nil
}

// Compare 仅比较时间点。
func (a ArchiveTimestamp) Compare(other ArchiveTimestamp) int {
	return a.Timestamp.Compare(other.Timestamp)
}

// InstalledDist 由已安装分发读取方提供，Path 指向其 dist-info 目录。
type InstalledDist interface {
	Path() string
}

// ArchiveTarget 是与源码比较的目标：已安装分发（比较其 METADATA）或缓存路径。
type ArchiveTarget struct {
	installed InstalledDist
	cachePath string
}

// InstallTarget 以已安装分发为目标。
func InstallTarget(dist InstalledDist) ArchiveTarget {
	return ArchiveTarget{installed: dist}
}

// CacheTarget 以缓存中的路径为目标。
func CacheTarget(path string) ArchiveTarget {
	return ArchiveTarget{cachePath: path}
}

func (t ArchiveTarget) path() string {
	if t.installed != nil {
		return filepath.Join(t.installed.Path(), "METADATA")
	}
	return t.cachePath
}

// UpToDateWith 报告 target 是否不早于 source。源码时间无法确定时保守地返回 false。
func UpToDateWith(source string, target ArchiveTarget) (bool, error) {
	modified, err := ArchiveTimestampFromPath(source)
	if err != nil {
		return false, err
	}
	if modified == nil {
		return false, nil
	}
	created, err := TimestampFromPath(target.path())
	if err != nil {
		return false, err
	}
	return modified.Timestamp.Compare(created) <= 0, nil
}
