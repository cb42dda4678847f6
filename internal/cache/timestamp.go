package cache

import (
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Timestamp 是从文件 mtime 或墙钟得到的可比较时间点，同时用于缓存新鲜度与源码/产物的陈旧判断。
type Timestamp struct {
	t time.Time
}

// Now 返回当前时刻。
func Now() Timestamp {
	return Timestamp{t: time.Now()}
}

// TimestampOf 将 time.Time 包装为 Timestamp，主要供配置与测试使用。
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// TimestampFromInfo 读取 FileInfo 中的修改时间。
func TimestampFromInfo(info fs.FileInfo) Timestamp {
	return Timestamp{t: info.ModTime()}
}

// TimestampFromPath 对 path 执行 stat（跟随符号链接）并返回其修改时间。
func TimestampFromPath(path string) (Timestamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Timestamp{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return TimestampFromInfo(info), nil
}

// Time 返回底层 time.Time。
func (t Timestamp) Time() time.Time {
	return t.t
}

// IsZero 表示时间点尚未设置。
func (t Timestamp) IsZero() bool {
	return t.t.IsZero()
}

// Compare 返回 -1/0/1。
func (t Timestamp) Compare(other Timestamp) int {
	return t.t.Compare(other.t)
}

// Before 报告 t 是否严格早于 other。
func (t Timestamp) Before(other Timestamp) bool {
	return t.t.Before(other.t)
}

func (t Timestamp) String() string {
	return t.t.Format(time.RFC3339Nano)
}

func maxTimestamp(values ...*Timestamp) *Timestamp {
	var latest *Timestamp
	for _, v := range values {
		if v == nil {
			continue
		}
		if latest == nil || latest.Before(*v) {
			latest = v
		}
	}
	return latest
}
