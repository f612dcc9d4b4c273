package di

import (
	"fmt"
	"reflect"
)

// Lifetime 定义了服务实例的生命周期。
type Lifetime int

const (
	// Singleton 每个引擎只创建一个实例，缓存在根作用域中。
	Singleton Lifetime = iota
	// Scoped 每个作用域创建一个实例。
	Scoped
	// Transient 每次解析都创建新实例，不缓存。
	Transient
)

// String 返回生命周期的可读名称。
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// CacheKey 标识作用域缓存中的一个实例。
// Slot 区分同一类型的多个注册：最后注册的实现占用 slot 0。
type CacheKey struct {
	Type     reflect.Type
	Name     string
	Slot     int
	Lifetime Lifetime
}

func (k CacheKey) String() string {
	if k.Name == "" {
		return fmt.Sprintf("%v[%d]/%s", k.Type, k.Slot, k.Lifetime)
	}
	return fmt.Sprintf("%v(name=%s)[%d]/%s", k.Type, k.Name, k.Slot, k.Lifetime)
}

// serviceKey 是注册表的查找键。
type serviceKey struct {
	Type reflect.Type
	Name string
}

func (k serviceKey) String() string {
	if k.Name == "" {
		return k.Type.String()
	}
	return fmt.Sprintf("%v(name=%s)", k.Type, k.Name)
}

// TypeOf 获取类型 T 的 reflect.Type（支持接口类型）。
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
