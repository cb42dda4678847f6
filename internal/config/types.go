package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/artifact-cache/internal/cache"
	"github.com/any-hub/artifact-cache/internal/resolver"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 是 TOML 文件映射的整体结构，所有字段均位于顶层。
type Config struct {
	CacheDir        string   `mapstructure:"CacheDir"`
	NoCache         bool     `mapstructure:"NoCache"`
	Refresh         bool     `mapstructure:"Refresh"`
	RefreshPackages []string `mapstructure:"RefreshPackages"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	IndexURL        string   `mapstructure:"IndexURL"`
	Concurrency     int      `mapstructure:"Concurrency"`
	RequestBuffer   int      `mapstructure:"RequestBuffer"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	Offline         bool     `mapstructure:"Offline"`

	ListenPort     int    `mapstructure:"ListenPort"`
	ResolutionMode string `mapstructure:"ResolutionMode"`
}

// RefreshPolicy 将 Refresh/RefreshPackages 转换为缓存的刷新策略，now 作为截止时间。
func (c *Config) RefreshPolicy(now cache.Timestamp) cache.Refresh {
	return cache.RefreshFromArgs(c.Refresh, c.RefreshPackages, now)
}

// Resolution 返回解析方向（假定 Validate 已经通过）。
func (c *Config) Resolution() resolver.ResolutionMode {
	mode, _ := resolver.ParseResolutionMode(c.ResolutionMode)
	return mode
}

// OpenCache 按配置打开缓存：NoCache 时返回进程级临时缓存，调用方负责 Close。
func (c *Config) OpenCache(now cache.Timestamp) (*cache.Cache, error) {
	var (
		store *cache.Cache
		err   error
	)
	if c.NoCache {
		store, err = cache.Temp()
	} else {
		store, err = cache.Open(c.CacheDir)
	}
	if err != nil {
		return nil, err
	}
	return store.WithRefresh(c.RefreshPolicy(now)), nil
}
