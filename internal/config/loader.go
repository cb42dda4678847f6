package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvConfigPath 指定默认配置文件路径的环境变量，--config 优先于它。
const EnvConfigPath = "ARTIFACT_CACHE_CONFIG"

// DefaultConfigPath 在未指定 --config 与环境变量时使用。
const DefaultConfigPath = "config.toml"

// ResolvePath 按 flag > 环境变量 > 默认值 的顺序确定配置路径。
func ResolvePath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectRemovedKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.NoCache {
		absCache, err := filepath.Abs(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.CacheDir = absCache
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CacheDir", "./cache")
	v.SetDefault("NoCache", false)
	v.SetDefault("Refresh", false)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("IndexURL", "https://pypi.org")
	v.SetDefault("Concurrency", 8)
	v.SetDefault("RequestBuffer", 300)
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("Offline", false)
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("ResolutionMode", "highest")
}

func applyDefaults(c *Config) {
	if c.ListenPort == 0 {
		c.ListenPort = 5000
	}
	if c.InitialBackoff.DurationValue() == 0 {
		c.InitialBackoff = Duration(time.Second)
	}
	if c.UpstreamTimeout.DurationValue() == 0 {
		c.UpstreamTimeout = Duration(30 * time.Second)
	}
	c.IndexURL = strings.TrimRight(strings.TrimSpace(c.IndexURL), "/")
	c.ResolutionMode = strings.ToLower(strings.TrimSpace(c.ResolutionMode))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// removedKeys 记录旧版配置中已不再支持的字段及替代方式。
var removedKeys = map[string]string{
	"storagepath": "字段已弃用，请使用 CacheDir",
	"hub":         "不再支持 [[Hub]] 段，本服务只缓存单一索引，请使用 IndexURL",
	"cachettl":    "字段已弃用，请使用 Refresh/RefreshPackages 控制重新验证",
}

func rejectRemovedKeys(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		root := strings.SplitN(key, ".", 2)[0]
		if reason, ok := removedKeys[root]; ok {
			return newFieldError(root, reason)
		}
	}
	return nil
}
