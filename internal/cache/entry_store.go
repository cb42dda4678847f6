package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"
)

// ErrNotFound 表示缓存条目不存在。
var ErrNotFound = errors.New("cache entry not found")

// WriteOptions 控制单文件条目写入时的可选属性。
type WriteOptions struct {
	ModTime time.Time
}

// EntryInfo 描述一个已落盘的单文件条目。
type EntryInfo struct {
	Entry     CacheEntry
	SizeBytes int64
	ModTime   time.Time
}

// ReadResult 组合条目信息与可 seek 的 Reader，调用方负责 Close。
type ReadResult struct {
	Info   EntryInfo
	Reader io.ReadSeekCloser
}

// entryLocks 按条目路径串行化写入，引用计数归零后释放。
type entryLocks struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newEntryLocks() *entryLocks {
	return &entryLocks{locks: make(map[string]*entryLock)}
}

func (l *entryLocks) lock(key string) func() {
	l.mu.Lock()
	lock := l.locks[key]
	if lock == nil {
		lock = &entryLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// ReadEntry 打开一个单文件条目；不存在或是目录时返回 ErrNotFound。
func (c *Cache) ReadEntry(ctx context.Context, entry CacheEntry) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(entry.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(entry.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Info: EntryInfo{
			Entry:     entry,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		},
		Reader: f,
	}, nil
}

// WriteEntry 通过同目录临时文件 + rename 原子写入条目，失败时清理临时文件。
func (c *Cache) WriteEntry(ctx context.Context, entry CacheEntry, body io.Reader, opts WriteOptions) (*EntryInfo, error) {
	unlock := c.locks.lock(entry.Path())
	defer unlock()

	if err := os.MkdirAll(entry.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", entry.Dir(), err)
	}

	tempFile, err := os.CreateTemp(entry.Dir(), ".cache-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, entry.Path()); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := time.Now()
	if !opts.ModTime.IsZero() {
		modTime = opts.ModTime
		if err := os.Chtimes(entry.Path(), modTime, modTime); err != nil {
			return nil, err
		}
	}

	return &EntryInfo{
		Entry:     entry,
		SizeBytes: written,
		ModTime:   modTime,
	}, nil
}

// RemoveEntry 删除单文件条目，条目不存在时视为成功。
func (c *Cache) RemoveEntry(entry CacheEntry) error {
	unlock := c.locks.lock(entry.Path())
	defer unlock()

	if err := os.Remove(entry.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
