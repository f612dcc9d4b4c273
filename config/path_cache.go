package config

import (
	"strings"
	"sync"
)

// PathCache 缓存键路径的分段结果，":" 与 "." 都是分隔符
type PathCache struct {
	cache sync.Map
}

// GetPathSegments 返回路径分段，空片段会被丢弃
func (c *PathCache) GetPathSegments(path string) []string {
	if v, ok := c.cache.Load(path); ok {
		return v.([]string)
	}

	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == ':' || r == '.'
	})
	v, _ := c.cache.LoadOrStore(path, parts)
	return v.([]string)
}

var globalPathCache = &PathCache{}
