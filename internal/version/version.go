package version

import "fmt"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Name 为二进制名称，同时用作上游请求的 User-Agent 前缀。
const Name = "artifact-cache"

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, Commit)
}

// UserAgent 返回访问上游索引时使用的 User-Agent。
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}
