package fetch

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/any-hub/artifact-cache/internal/resolver"
)

// MarshalVersionMap 将版本表编码为 Simple bucket 中的 msgpack 条目：
// {name, versions: [{version, filename, url, kind, yanked}]}。
func MarshalVersionMap(name string, vm *resolver.VersionMap) []byte {
	dists := vm.Dists()
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, name)
	b = msgp.AppendString(b, "versions")
	b = msgp.AppendArrayHeader(b, uint32(len(dists)))
	for _, d := range dists {
		b = msgp.AppendMapHeader(b, 5)
		b = msgp.AppendString(b, "version")
		b = msgp.AppendString(b, d.Version.Original())
		b = msgp.AppendString(b, "filename")
		b = msgp.AppendString(b, d.Filename)
		b = msgp.AppendString(b, "url")
		b = msgp.AppendString(b, d.URL)
		b = msgp.AppendString(b, "kind")
		b = msgp.AppendInt(b, int(d.Kind))
		b = msgp.AppendString(b, "yanked")
		b = msgp.AppendBool(b, d.Yanked)
	}
	return b
}

// UnmarshalVersionMap 解码 MarshalVersionMap 的输出，未知字段被跳过。
func UnmarshalVersionMap(data []byte) (string, *resolver.VersionMap, error) {
	var name string
	vm := resolver.NewVersionMap()

	sz, rest, err := msgp.ReadMapHeaderBytes(data)
	if err != nil {
		return "", nil, err
	}
	for i := uint32(0); i < sz; i++ {
		var key []byte
		key, rest, err = msgp.ReadMapKeyZC(rest)
		if err != nil {
			return "", nil, err
		}
		switch string(key) {
		case "name":
			name, rest, err = msgp.ReadStringBytes(rest)
		case "versions":
			rest, err = readVersions(rest, name, vm)
		default:
			rest, err = msgp.Skip(rest)
		}
		if err != nil {
			return "", nil, err
		}
	}
	for _, d := range vm.Dists() {
		if d.Name == "" {
			d.Name = name
		}
	}
	return name, vm, nil
}

func readVersions(b []byte, name string, vm *resolver.VersionMap) ([]byte, error) {
	n, rest, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		var (
			fields uint32
			raw    string
			kind   int
		)
		d := &resolver.Dist{Name: name}
		fields, rest, err = msgp.ReadMapHeaderBytes(rest)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < fields; j++ {
			var key []byte
			key, rest, err = msgp.ReadMapKeyZC(rest)
			if err != nil {
				return nil, err
			}
			switch string(key) {
			case "version":
				raw, rest, err = msgp.ReadStringBytes(rest)
			case "filename":
				d.Filename, rest, err = msgp.ReadStringBytes(rest)
			case "url":
				d.URL, rest, err = msgp.ReadStringBytes(rest)
			case "kind":
				kind, rest, err = msgp.ReadIntBytes(rest)
				d.Kind = resolver.DistKind(kind)
			case "yanked":
				d.Yanked, rest, err = msgp.ReadBoolBytes(rest)
			default:
				rest, err = msgp.Skip(rest)
			}
			if err != nil {
				return nil, err
			}
		}
		d.Version, err = resolver.ParseVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("decode version map entry %d: %w", i, err)
		}
		vm.Insert(d)
	}
	return rest, nil
}
