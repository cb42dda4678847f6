package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/artifact-cache/internal/resolver"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if !c.NoCache && strings.TrimSpace(c.CacheDir) == "" {
		return newFieldError("CacheDir", "不能为空（或设置 NoCache = true）")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return newFieldError("LogLevel", err.Error())
	}
	if c.MaxRetries < 0 {
		return newFieldError("MaxRetries", "不能为负数")
	}
	if c.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("InitialBackoff", "必须大于 0")
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if c.Concurrency <= 0 {
		return newFieldError("Concurrency", "必须大于 0")
	}
	if c.RequestBuffer < 0 {
		return newFieldError("RequestBuffer", "不能为负数")
	}
	if err := validateUpstream(c.IndexURL); err != nil {
		return fmt.Errorf("IndexURL: %w", err)
	}
	if _, err := resolver.ParseResolutionMode(c.ResolutionMode); err != nil {
		return newFieldError("ResolutionMode", "仅支持 highest/lowest")
	}
	for i, name := range c.RefreshPackages {
		if strings.TrimSpace(name) == "" {
			return newFieldError(fmt.Sprintf("RefreshPackages[%d]", i), "不能为空")
		}
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
