package cache

import (
	"fmt"
	"path/filepath"
)

// bucketRemover 删除 bucket 目录 root 下属于包 name（已规范化）的条目。
// 每种 bucket 一个纯函数，不依赖 Cache 会话，便于单独测试。
type bucketRemover func(root, name string) (Removal, error)

var bucketRemovers = map[Bucket]bucketRemover{
	BucketWheels:      removeWheels,
	BucketBuiltWheels: removeBuiltWheels,
	BucketFlatIndex:   removeFlatIndex,
	BucketGit:         removeNothing,
	BucketInterpreter: removeNothing,
	BucketSimple:      removeSimple,
	BucketArchive:     removeNothing,
}

func removerFor(b Bucket) (bucketRemover, error) {
	remover, ok := bucketRemovers[b]
	if !ok {
		return nil, fmt.Errorf("no removal strategy for %s", b)
	}
	return remover, nil
}

// removeByName 删除 pypi/<name> 以及每个 index、url 命名空间下的 <name>。
func removeByName(root, name string, namespaced ...WheelCacheKind) (Removal, error) {
	var summary Removal

	removal, err := rmRF(filepath.Join(root, string(WheelCacheKindPypi), name))
	if err != nil {
		return summary, err
	}
	summary.Add(removal)

	for _, kind := range namespaced {
		for _, dir := range directories(filepath.Join(root, string(kind))) {
			removal, err := rmRF(filepath.Join(dir, name))
			if err != nil {
				return summary, err
			}
			summary.Add(removal)
		}
	}
	return summary, nil
}

func removeWheels(root, name string) (Removal, error) {
	return removeByName(root, name, WheelCacheKindIndex, WheelCacheKindURL)
}

func removeBuiltWheels(root, name string) (Removal, error) {
	summary, err := removeByName(root, name, WheelCacheKindIndex)
	if err != nil {
		return summary, err
	}

	// url/path 以来源哈希为键，只要任一版本目录的 sidecar 指向该包就整体删除。
	for _, kind := range []WheelCacheKind{WheelCacheKindURL, WheelCacheKindPath} {
		for _, keyed := range directories(filepath.Join(root, string(kind))) {
			if !anyBuiltWheelMatch(directories(keyed), name) {
				continue
			}
			removal, err := rmRF(keyed)
			if err != nil {
				return summary, err
			}
			summary.Add(removal)
		}
	}

	// git/<repo>/<sha> 逐个 SHA 判断。
	for _, repository := range directories(filepath.Join(root, string(WheelCacheKindGit))) {
		for _, sha := range directories(repository) {
			if !isBuiltWheelMatch(sha, name) {
				continue
			}
			removal, err := rmRF(sha)
			if err != nil {
				return summary, err
			}
			summary.Add(removal)
		}
	}
	return summary, nil
}

func anyBuiltWheelMatch(versions []string, name string) bool {
	for _, version := range versions {
		if isBuiltWheelMatch(version, name) {
			return true
		}
	}
	return false
}

func removeSimple(root, name string) (Removal, error) {
	var summary Removal
	file := SimpleEntryName(name)

	removal, err := rmRF(filepath.Join(root, string(WheelCacheKindPypi), file))
	if err != nil {
		return summary, err
	}
	summary.Add(removal)

	for _, dir := range directories(filepath.Join(root, string(WheelCacheKindURL))) {
		removal, err := rmRF(filepath.Join(dir, file))
		if err != nil {
			return summary, err
		}
		summary.Add(removal)
	}
	return summary, nil
}

// removeFlatIndex 无法判断响应中是否包含该包，只能整体删除。
func removeFlatIndex(root, _ string) (Removal, error) {
	return rmRF(root)
}

func removeNothing(string, string) (Removal, error) {
	return Removal{}, nil
}
