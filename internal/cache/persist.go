package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Persist 将 tempDir 移入 Archive bucket 的随机 ID 目录，然后在 dest 处原子地创建/替换
// 指向该目录的符号链接，返回归档路径。
//
// rename 先使归档落盘，符号链接替换是唯一使产物在逻辑位置可见的操作；两步之间崩溃
// 只会留下无引用的归档，由 Prune 回收。
func (c *Cache) Persist(ctx context.Context, tempDir, dest string) (string, error) {
	id := uuid.NewString()

	archive := c.Entry(BucketArchive, "", id)
	if err := os.MkdirAll(archive.Dir(), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", archive.Dir(), err)
	}
	if err := renameWithRetry(ctx, tempDir, archive.Path()); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", tempDir, archive.Path(), err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := replaceSymlink(archive.Path(), dest); err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"action":  "persist",
		"archive": id,
		"path":    dest,
	}).Debug("产物已发布")

	return archive.Path(), nil
}
