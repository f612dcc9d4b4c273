package di

import (
	"fmt"
	"reflect"
)

// ServiceProvider 按类型解析服务。*Scope 和 *Engine 都实现了它。
type ServiceProvider interface {
	GetService(typ reflect.Type) (any, error)
	GetNamedService(typ reflect.Type, name string) (any, error)
}

// ScopeFactory 创建新的作用域。
type ScopeFactory interface {
	CreateScope() *Scope
}

var (
	_ ServiceProvider = (*Scope)(nil)
	_ ServiceProvider = (*Engine)(nil)
	_ ScopeFactory    = (*Engine)(nil)
)

// Resolve 解析类型 T 的实例。
func Resolve[T any](sp ServiceProvider) (T, error) {
	return ResolveNamed[T](sp, "")
}

// ResolveNamed 解析指定名称的 T。
func ResolveNamed[T any](sp ServiceProvider, name string) (T, error) {
	var zero T
	typ := TypeOf[T]()

	val, err := sp.GetNamedService(typ, name)
	if err != nil {
		return zero, err
	}
	if val == nil {
		return zero, nil
	}
	if v, ok := val.(T); ok {
		return v, nil
	}
	return zero, fmt.Errorf("di: resolved value is %T, expected %v", val, typ)
}

// MustResolve 解析失败时 panic。
func MustResolve[T any](sp ServiceProvider) T {
	v, err := Resolve[T](sp)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %v: %v", TypeOf[T](), err))
	}
	return v
}

// ResolveAll 按注册顺序解析 T 的所有实现。
func ResolveAll[T any](sp ServiceProvider) ([]T, error) {
	return Resolve[[]T](sp)
}

// Invoke 解析 fn 的所有参数并调用它。
// fn 最后一个返回值是 error 时，返回该错误。
func Invoke(sp ServiceProvider, fn any) error {
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		return fmt.Errorf("di: Invoke expects a function, got %T", fn)
	}
	fnType := fnVal.Type()
	if fnType.IsVariadic() {
		return fmt.Errorf("di: Invoke does not support variadic function %v", fnType)
	}

	args := make([]reflect.Value, fnType.NumIn())
	for i := range args {
		argType := fnType.In(i)
		v, err := sp.GetService(argType)
		if err != nil {
			return fmt.Errorf("di: invoke argument %d (%v): %w", i, argType, err)
		}
		args[i] = argValue(v, argType)
	}

	results := fnVal.Call(args)
	if n := len(results); n > 0 {
		last := results[n-1]
		if last.Type() == errorType && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}
