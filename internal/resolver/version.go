package resolver

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version 为解析过程中使用的版本号，比较语义委托给 semver。
// semver 只接受 MAJOR[.MINOR[.PATCH]][-pre][+meta] 形式，PEP 440 中的 1.0rc1、
// 2023.3.post1、四段版本号等无法解析，fetch 拉取版本表时会跳过这些发布并记录数量。
type Version = *semver.Version

// ParseVersion 解析版本字符串；无法解析时返回带原始输入的错误。
func ParseVersion(raw string) (Version, error) {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", raw, err)
	}
	return v, nil
}

// MustParseVersion 用于常量与测试，解析失败时 panic。
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}
