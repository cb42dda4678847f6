package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	cacheDirTagFile = "CACHEDIR.TAG"
	gitignoreFile   = ".gitignore"
	phonyGitFile    = ".git"

	cacheDirTagContent = "Signature: 8a477f597d28d172789f06886806bc55\n" +
		"# This file is a cache directory tag created by artifact-cache.\n" +
		"# For information about cache directory tags see https://bford.info/cachedir/\n"
)

// Cache 是进程级缓存句柄，持有根目录、刷新策略以及（可选的）临时根目录。
// 临时根目录由创建它的 Cache 独占，调用方负责在退出时 Close。
type Cache struct {
	root    string
	refresh Refresh
	temp    *tempRoot
	logger  logrus.FieldLogger

	stat func(string) (fs.FileInfo, error)

	locks *entryLocks
}

// tempRoot 记录 Temp() 创建的目录，Close 时删除且只删除一次。
type tempRoot struct {
	path string
	once sync.Once
	err  error
}

func (t *tempRoot) close() error {
	t.once.Do(func() {
		t.err = os.RemoveAll(t.path)
	})
	return t.err
}

// Open 以 root 为持久化缓存目录初始化缓存，可重复调用，也容忍多个进程并发初始化。
func Open(root string) (*Cache, error) {
	if root == "" {
		return nil, errors.New("cache root required")
	}
	canonical, err := initRoot(root)
	if err != nil {
		return nil, err
	}
	return newCache(canonical, nil), nil
}

// Temp 创建一个仅在本次进程内有效的临时缓存目录，Close 时删除。
func Temp() (*Cache, error) {
	dir, err := os.MkdirTemp("", "artifact-cache-")
	if err != nil {
		return nil, fmt.Errorf("create temp cache: %w", err)
	}
	canonical, err := initRoot(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return newCache(canonical, &tempRoot{path: dir}), nil
}

func newCache(root string, temp *tempRoot) *Cache {
	return &Cache{
		root:    root,
		refresh: RefreshNone(),
		temp:    temp,
		logger:  logrus.StandardLogger(),
		stat:    os.Stat,
		locks:   newEntryLocks(),
	}
}

// WithRefresh 返回使用 refresh 策略的缓存句柄，其余状态（包括临时目录所有权）共享。
func (c *Cache) WithRefresh(refresh Refresh) *Cache {
	clone := *c
	clone.refresh = refresh
	return &clone
}

// WithLogger 替换日志输出。
func (c *Cache) WithLogger(logger logrus.FieldLogger) *Cache {
	clone := *c
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	clone.logger = logger
	return &clone
}

// Close 删除 Temp() 创建的临时目录；持久化缓存上调用无副作用。
func (c *Cache) Close() error {
	if c.temp == nil {
		return nil
	}
	return c.temp.close()
}

// IsTemporary 表示缓存根目录随进程结束删除。
func (c *Cache) IsTemporary() bool {
	return c.temp != nil
}

// Root 返回规范化后的缓存根目录。
func (c *Cache) Root() string {
	return c.root
}

// Refresh 返回当前刷新策略。
func (c *Cache) Refresh() Refresh {
	return c.refresh
}

// Bucket 返回 bucket 目录。
func (c *Cache) Bucket(b Bucket) string {
	return filepath.Join(c.root, b.String())
}

// Shard 返回 bucket 下的分片。
func (c *Cache) Shard(b Bucket, dir string) CacheShard {
	return CacheShard{path: filepath.Join(c.Bucket(b), dir)}
}

// Entry 返回 bucket 下 dir/file 对应的缓存条目。
func (c *Cache) Entry(b Bucket, dir, file string) CacheEntry {
	return NewCacheEntry(filepath.Join(c.Bucket(b), dir), file)
}

// MustRevalidate 报告该包的网络缓存是否必须绕过。
func (c *Cache) MustRevalidate(pkg string) bool {
	switch c.refresh.kind {
	case RefreshKindAll:
		return true
	case RefreshKindPackages:
		return c.refresh.contains(pkg)
	default:
		return false
	}
}

// Freshness 根据刷新策略判断 entry 是否可用。pkg 为空表示无法确定所属包，需按截止时间检查。
func (c *Cache) Freshness(entry CacheEntry, pkg string) (Freshness, error) {
	var cutoff Timestamp
	switch c.refresh.kind {
	case RefreshKindNone:
		return Fresh, nil
	case RefreshKindAll:
		cutoff = c.refresh.cutoff
	case RefreshKindPackages:
		if pkg != "" && !c.refresh.contains(pkg) {
			return Fresh, nil
		}
		cutoff = c.refresh.cutoff
	}

	info, err := c.stat(entry.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Missing, nil
		}
		return Missing, fmt.Errorf("stat %s: %w", entry.Path(), err)
	}
	if TimestampFromInfo(info).Compare(cutoff) >= 0 {
		return Fresh, nil
	}
	return Stale, nil
}

// initRoot 创建目录树及标记文件并返回规范化路径，已存在的标记文件保持不变。
func initRoot(root string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create cache root: %w", err)
	}

	if err := ensureCacheDirTag(root); err != nil {
		return "", err
	}

	if err := writeNewFile(filepath.Join(root, gitignoreFile), []byte("*")); err != nil {
		return "", err
	}

	// 构建后端会自下而上查找 .gitignore，built-wheels 需要自己的空文件截断查找。
	builtWheels := filepath.Join(root, BucketBuiltWheels.String())
	if err := os.MkdirAll(builtWheels, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", builtWheels, err)
	}
	if err := writeNewFile(filepath.Join(builtWheels, gitignoreFile), nil); err != nil {
		return "", err
	}

	// 伪 .git 必须在 .gitignore 之后写入，避免构建产物被视为用户仓库的一部分。
	gitMarker := filepath.Join(builtWheels, phonyGitFile)
	f, err := os.OpenFile(gitMarker, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", gitMarker, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", gitMarker, err)
	}

	canonical, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache root: %w", err)
	}
	abs, err := filepath.Abs(canonical)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache root: %w", err)
	}
	return abs, nil
}

func ensureCacheDirTag(root string) error {
	path := filepath.Join(root, cacheDirTagFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeNewFile(path, []byte(cacheDirTagContent))
}

// writeNewFile 以 O_EXCL 创建文件；文件已存在视为成功，其他错误原样返回。
func writeNewFile(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if len(content) > 0 {
		if _, err := f.Write(content); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
