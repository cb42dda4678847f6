package resolver

import (
	"fmt"
	"strings"
)

// ResolutionMode 决定同一范围内优先选择的版本方向。
type ResolutionMode int

const (
	ResolutionHighest ResolutionMode = iota
	ResolutionLowest
)

// ParseResolutionMode 解析配置中的 highest/lowest。
func ParseResolutionMode(raw string) (ResolutionMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "highest":
		return ResolutionHighest, nil
	case "lowest":
		return ResolutionLowest, nil
	default:
		return ResolutionHighest, fmt.Errorf("unknown resolution mode %q", raw)
	}
}

func (m ResolutionMode) String() string {
	if m == ResolutionLowest {
		return "lowest"
	}
	return "highest"
}

// CandidateSelector 为预取器提供版本挑选能力。
type CandidateSelector interface {
	// SelectNoPreference 在 rng 内挑出一个版本，不考虑锁文件或已安装偏好；没有可选版本时返回 nil。
	SelectNoPreference(name string, rng Range, versions *VersionMap) *Candidate
	// UseHighestVersion 报告该包是否按从高到低的顺序挑选。
	UseHighestVersion(name string) bool
}

// Selector 为默认的候选选择器。
type Selector struct {
	Mode ResolutionMode
	// Lowest 中列出的包始终按最低版本挑选（direct-only lowest 之类的策略）。
	Lowest map[string]struct{}
}

// NewSelector 以全局模式创建选择器。
func NewSelector(mode ResolutionMode) *Selector {
	return &Selector{Mode: mode}
}

// UseHighestVersion 实现 CandidateSelector。
func (s *Selector) UseHighestVersion(name string) bool {
	if _, ok := s.Lowest[name]; ok {
		return false
	}
	return s.Mode == ResolutionHighest
}

// SelectNoPreference 实现 CandidateSelector。
func (s *Selector) SelectNoPreference(name string, rng Range, versions *VersionMap) *Candidate {
	if versions.Len() == 0 || rng.IsEmpty() {
		return nil
	}
	n := len(versions.entries)
	for i := 0; i < n; i++ {
		idx := i
		if s.UseHighestVersion(name) {
			idx = n - 1 - i
		}
		entry := versions.entries[idx]
		if !rng.Contains(entry.version) {
			continue
		}
		// yanked 版本不参与无偏好选择。
		if entry.dist.Yanked {
			continue
		}
		return &Candidate{
			Name:    name,
			Version: entry.version,
			Dist: CandidateDist{
				Dist:       entry.dist,
				Compatible: entry.dist.Incompatibility == "",
			},
		}
	}
	return nil
}
