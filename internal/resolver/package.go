package resolver

import (
	"fmt"

	"github.com/any-hub/artifact-cache/internal/cache"
)

// PackageKind 区分解析图中的节点类型，只有 PackageKindPackage 会参与预取。
type PackageKind int

const (
	PackageKindRoot PackageKind = iota
	PackageKindPython
	PackageKindPackage
)

func (k PackageKind) String() string {
	switch k {
	case PackageKindRoot:
		return "root"
	case PackageKindPython:
		return "python"
	case PackageKindPackage:
		return "package"
	default:
		return fmt.Sprintf("PackageKind(%d)", int(k))
	}
}

// Package 为解析器中的包节点，可作为 map key。
type Package struct {
	Kind  PackageKind
	Name  string
	Extra string
}

// NewPackage 构造一个规范化名称的普通包节点。
func NewPackage(name string) Package {
	return Package{Kind: PackageKindPackage, Name: cache.NormalizePackageName(name)}
}

// RootPackage 返回解析根节点。
func RootPackage() Package { return Package{Kind: PackageKindRoot} }

// PythonPackage 返回解释器约束节点。
func PythonPackage() Package { return Package{Kind: PackageKindPython, Name: "python"} }

func (p Package) String() string {
	switch p.Kind {
	case PackageKindRoot:
		return "root"
	case PackageKindPython:
		return "python"
	}
	if p.Extra != "" {
		return p.Name + "[" + p.Extra + "]"
	}
	return p.Name
}
