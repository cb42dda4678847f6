package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Removal 汇总一次删除操作移除的文件/目录数量与字节数，可通过 Add 叠加。
type Removal struct {
	NumFiles   int64 `json:"num_files"`
	NumDirs    int64 `json:"num_dirs"`
	TotalBytes int64 `json:"total_bytes"`
}

// Add 将 other 累加到当前汇总。
func (r *Removal) Add(other Removal) {
	r.NumFiles += other.NumFiles
	r.NumDirs += other.NumDirs
	r.TotalBytes += other.TotalBytes
}

// IsEmpty 表示没有删除任何内容。
func (r Removal) IsEmpty() bool {
	return r.NumFiles == 0 && r.NumDirs == 0
}

// rmRF 递归删除 path 并统计删除量；path 不存在时返回空汇总。
// 符号链接本身被删除并计为文件，不会跟随到目标。
func rmRF(path string) (Removal, error) {
	var summary Removal

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return summary, nil
		}
		return summary, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return summary, nil
			}
			return summary, fmt.Errorf("remove %s: %w", path, err)
		}
		summary.NumFiles++
		if info.Mode().IsRegular() {
			summary.TotalBytes += info.Size()
		}
		return summary, nil
	}

	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			summary.NumDirs++
			return nil
		}
		summary.NumFiles++
		if d.Type().IsRegular() {
			if fi, err := d.Info(); err == nil {
				summary.TotalBytes += fi.Size()
			}
		}
		return nil
	})
	if err != nil {
		return Removal{}, fmt.Errorf("walk %s: %w", path, err)
	}

	if err := os.RemoveAll(path); err != nil {
		return Removal{}, fmt.Errorf("remove %s: %w", path, err)
	}
	return summary, nil
}
