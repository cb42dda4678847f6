package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// directories 列出 root 的直接子目录（不跟随符号链接），root 不存在或不可读时返回空。
func directories(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs
}

// renameWithRetry 在目标短暂被占用（例如杀毒软件扫描）时重试 rename。
func renameWithRetry(ctx context.Context, from, to string) error {
	return retry.Do(
		func() error {
			err := os.Rename(from, to)
			if err != nil && errors.Is(err, fs.ErrNotExist) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(10*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// replaceSymlink 原子地创建或替换 dst 处指向 src 的符号链接：
// 先在同目录创建临时链接，再 rename 覆盖。
func replaceSymlink(src, dst string) error {
	tmp := filepath.Join(filepath.Dir(dst), ".tmp-link-"+uuid.NewString())
	if err := os.Symlink(src, tmp); err != nil {
		return fmt.Errorf("symlink %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace symlink %s: %w", dst, err)
	}
	return nil
}
