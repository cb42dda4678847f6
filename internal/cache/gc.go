package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Clear 删除整个缓存根目录，随后重建根目录与标记文件，句柄在进程内仍可继续使用。
func (c *Cache) Clear() (Removal, error) {
	removal, err := rmRF(c.root)
	if err != nil {
		return removal, err
	}
	if _, err := initRoot(c.root); err != nil {
		return removal, fmt.Errorf("reinitialize cache root: %w", err)
	}
	return removal, nil
}

// Remove 对每个 bucket 应用其删除策略，返回累计的删除量。
func (c *Cache) Remove(pkg string) (Removal, error) {
	name := NormalizePackageName(pkg)
	if name == "" {
		return Removal{}, errors.New("package name required")
	}

	var summary Removal
	for _, bucket := range AllBuckets() {
		remover, err := removerFor(bucket)
		if err != nil {
			return summary, err
		}
		removal, err := remover(c.Bucket(bucket), name)
		if err != nil {
			return summary, fmt.Errorf("remove %s from %s: %w", name, bucket, err)
		}
		summary.Add(removal)
	}
	return summary, nil
}

// Prune 执行两阶段 mark-and-sweep：
//  1. 删除根目录下非当前 bucket 的目录（旧 schema 版本）以及非标记文件；
//  2. 收集所有 bucket 中符号链接的规范化目标，删除未被引用的归档目录。
//
// TODO: 回收 BuiltWheels 中未使用的源码包构建结果，需要读取并解析各目录的 manifest。
func (c *Cache) Prune() (Removal, error) {
	var summary Removal

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return summary, fmt.Errorf("read %s: %w", c.root, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == cacheDirTagFile || name == gitignoreFile || name == phonyGitFile {
			continue
		}
		if entry.IsDir() && isKnownBucketDir(name) {
			continue
		}
		path := filepath.Join(c.root, name)
		c.logger.WithFields(logrus.Fields{"action": "prune", "path": path}).Debug("删除悬空缓存条目")
		removal, err := rmRF(path)
		if err != nil {
			return summary, err
		}
		summary.Add(removal)
	}

	references, err := c.collectReferences()
	if err != nil {
		return summary, err
	}

	archives, err := os.ReadDir(c.Bucket(BucketArchive))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return summary, nil
		}
		return summary, fmt.Errorf("read %s: %w", c.Bucket(BucketArchive), err)
	}
	for _, entry := range archives {
		path, err := filepath.EvalSymlinks(filepath.Join(c.Bucket(BucketArchive), entry.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return summary, fmt.Errorf("canonicalize %s: %w", entry.Name(), err)
		}
		if _, ok := references[path]; ok {
			continue
		}
		c.logger.WithFields(logrus.Fields{"action": "prune", "path": path}).Debug("删除悬空缓存条目")
		removal, err := rmRF(path)
		if err != nil {
			return summary, err
		}
		summary.Add(removal)
	}

	return summary, nil
}

// collectReferences 遍历所有 bucket，返回符号链接的规范化目标集合。
// 目标已不存在的链接无法保活任何归档，直接忽略。
func (c *Cache) collectReferences() (map[string]struct{}, error) {
	references := make(map[string]struct{})
	for _, bucket := range AllBuckets() {
		root := c.Bucket(bucket)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.Type()&fs.ModeSymlink == 0 {
				return nil
			}
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return fmt.Errorf("canonicalize %s: %w", path, err)
			}
			references[target] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return references, nil
}
