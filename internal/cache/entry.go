package cache

import "path/filepath"

// CacheEntry 是缓存中某个文件的位置，可能尚不存在。
type CacheEntry struct {
	path string
}

// NewCacheEntry 由目录与文件名组成缓存条目。
func NewCacheEntry(dir, file string) CacheEntry {
	return CacheEntry{path: filepath.Join(dir, file)}
}

// CacheEntryFromPath 直接以 path 构造缓存条目。
func CacheEntryFromPath(path string) CacheEntry {
	return CacheEntry{path: path}
}

// Path 返回条目的完整路径。
func (e CacheEntry) Path() string {
	return e.path
}

// Dir 返回条目所在目录。
func (e CacheEntry) Dir() string {
	return filepath.Dir(e.path)
}

// WithFile 返回同目录下的另一个文件条目。
func (e CacheEntry) WithFile(file string) CacheEntry {
	return NewCacheEntry(e.Dir(), file)
}

func (e CacheEntry) String() string {
	return e.path
}

// CacheShard 是 bucket 下的一个子目录命名空间。
type CacheShard struct {
	path string
}

// Path 返回分片目录。
func (s CacheShard) Path() string {
	return s.path
}

// Entry 返回分片内的文件条目。
func (s CacheShard) Entry(file string) CacheEntry {
	return NewCacheEntry(s.path, file)
}

// Shard 返回分片内的子分片。
func (s CacheShard) Shard(dir string) CacheShard {
	return CacheShard{path: filepath.Join(s.path, dir)}
}

func (s CacheShard) String() string {
	return s.path
}
