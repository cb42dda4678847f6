package cache

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tinylib/msgp/msgp"
)

// SidecarMetadataFile 是 BuiltWheels 中每个版本目录旁的元数据文件名。
const SidecarMetadataFile = "metadata.msgpack"

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizePackageName 按 PEP 503 规范化包名：小写并将 -_. 连续序列折叠为 "-"。
func NormalizePackageName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// DistMetadata 是 sidecar 元数据中与缓存清理相关的字段。
type DistMetadata struct {
	Name    string
	Version string
}

// MarshalDistMetadata 以 msgpack map 形式编码 sidecar 元数据。
func MarshalDistMetadata(meta DistMetadata) []byte {
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, meta.Name)
	b = msgp.AppendString(b, "version")
	b = msgp.AppendString(b, meta.Version)
	return b
}

// UnmarshalDistMetadata 解码 sidecar 元数据，未知字段被跳过。
func UnmarshalDistMetadata(data []byte) (DistMetadata, error) {
	var meta DistMetadata
	sz, rest, err := msgp.ReadMapHeaderBytes(data)
	if err != nil {
		return meta, err
	}
	for i := uint32(0); i < sz; i++ {
		var key []byte
		key, rest, err = msgp.ReadMapKeyZC(rest)
		if err != nil {
			return meta, err
		}
		switch string(key) {
		case "name":
			meta.Name, rest, err = msgp.ReadStringBytes(rest)
		case "version":
			meta.Version, rest, err = msgp.ReadStringBytes(rest)
		default:
			rest, err = msgp.Skip(rest)
		}
		if err != nil {
			return meta, err
		}
	}
	return meta, nil
}

// isBuiltWheelMatch 判断 dir 下的 sidecar 元数据是否指向包 name。
// 读取或解析失败一律视为不匹配。
func isBuiltWheelMatch(dir, name string) bool {
	data, err := os.ReadFile(filepath.Join(dir, SidecarMetadataFile))
	if err != nil {
		return false
	}
	meta, err := UnmarshalDistMetadata(data)
	if err != nil {
		return false
	}
	return NormalizePackageName(meta.Name) == name
}
