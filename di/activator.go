package di

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// checkConstructor 检查构造函数签名：func(deps...) T 或 func(deps...) (T, error)。
func checkConstructor(fnType reflect.Type, serviceType reflect.Type) error {
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("%w: expected function, got %v", ErrInvalidRegistration, fnType)
	}
	if fnType.IsVariadic() {
		return fmt.Errorf("%w: variadic constructor %v is not supported", ErrInvalidRegistration, fnType)
	}
	switch fnType.NumOut() {
	case 1:
	case 2:
		if !fnType.Out(1).Implements(errorType) {
			return fmt.Errorf("%w: second return value of %v must be error", ErrInvalidRegistration, fnType)
		}
	default:
		return fmt.Errorf("%w: constructor %v must return (T) or (T, error)", ErrInvalidRegistration, fnType)
	}
	if !fnType.Out(0).AssignableTo(serviceType) {
		return fmt.Errorf("%w: constructor returns %v, not assignable to %v", ErrInvalidRegistration, fnType.Out(0), serviceType)
	}
	return nil
}

// newFuncActivator 把构造函数转换成 Activator。
// 反射信息在这里一次性计算好，解析时只做 Call。
func newFuncActivator(fn any) Activator {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	target := fnType.String()
	inTypes := make([]reflect.Type, fnType.NumIn())
	for i := range inTypes {
		inTypes[i] = fnType.In(i)
	}
	hasErr := fnType.NumOut() == 2

	return func(args []any) (any, error) {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			in[i] = argValue(a, inTypes[i])
		}

		results := fnVal.Call(in)

		// 检查 error
		if hasErr && !results[1].IsNil() {
			return nil, &InvocationError{Target: target, Cause: results[1].Interface().(error)}
		}

		// 检查 nil
		first := results[0]
		if (first.Kind() == reflect.Ptr || first.Kind() == reflect.Interface) && first.IsNil() {
			return nil, &InvocationError{Target: target, Cause: errors.New("constructor returned nil instance")}
		}
		return first.Interface(), nil
	}
}

// fieldInjection 描述一个需要注入的结构体字段。
type fieldInjection struct {
	Index       int
	Name        string
	Type        reflect.Type
	ServiceName string
	Optional    bool
}

// parseInjectTag 解析 `di:"name,optional"` 标签。
// "?" 和 "optional" 都表示可选；单独出现时 name 为空。
func parseInjectTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	if name == "?" || name == "optional" {
		return "", true
	}
	for _, part := range parts[1:] {
		switch strings.TrimSpace(part) {
		case "optional", "?":
			optional = true
		}
	}
	return name, optional
}

// injectableFields 返回结构体中带 di 标签的字段。
func injectableFields(structType reflect.Type) ([]fieldInjection, error) {
	var fields []fieldInjection
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		tag, ok := field.Tag.Lookup("di")
		if !ok {
			continue
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("%w: field %s.%s is tagged for injection but not exported",
				ErrInvalidRegistration, structType, field.Name)
		}
		name, optional := parseInjectTag(tag)
		fields = append(fields, fieldInjection{
			Index:       i,
			Name:        field.Name,
			Type:        field.Type,
			ServiceName: name,
			Optional:    optional,
		})
	}
	return fields, nil
}

// newStructActivator 创建结构体实例并按顺序设置注入字段，args 与 fields 一一对应。
func newStructActivator(implType reflect.Type, fields []fieldInjection) Activator {
	structType, isPtr := structOf(implType)
	return func(args []any) (any, error) {
		val := reflect.New(structType)
		elem := val.Elem()
		for i, f := range fields {
			elem.Field(f.Index).Set(argValue(args[i], f.Type))
		}
		if isPtr {
			return val.Interface(), nil
		}
		return elem.Interface(), nil
	}
}

// newInstanceFunc 无参构造：零值结构体。
func newInstanceFunc(implType reflect.Type) func() (any, error) {
	structType, isPtr := structOf(implType)
	return func() (any, error) {
		val := reflect.New(structType)
		if isPtr {
			return val.Interface(), nil
		}
		return val.Elem().Interface(), nil
	}
}

func structOf(implType reflect.Type) (reflect.Type, bool) {
	if implType.Kind() == reflect.Ptr {
		return implType.Elem(), true
	}
	return implType, false
}

// argValue 把解析结果转换为参数值，nil 使用目标类型的零值。
func argValue(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}
