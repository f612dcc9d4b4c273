package di

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceNotFound 请求的服务没有注册。
	ErrServiceNotFound = errors.New("di: service not found")

	// ErrCircularDependency 依赖图中存在环。错误信息包含完整的依赖链。
	ErrCircularDependency = errors.New("di: circular dependency detected")

	// ErrScopeDisposed 作用域已经释放，不能再解析或捕获实例。
	ErrScopeDisposed = errors.New("di: scope has been disposed")

	// ErrScopedFromRoot 启用 ValidateScopes 时，从根作用域解析 Scoped 服务。
	ErrScopedFromRoot = errors.New("di: cannot resolve scoped service from root scope")

	// ErrAlreadyBuilt Build 之后不能再修改服务集合。
	ErrAlreadyBuilt = errors.New("di: service collection already built")

	// ErrInvalidRegistration 服务描述不合法。
	ErrInvalidRegistration = errors.New("di: invalid registration")
)

// InvocationError 是调用层对构造失败的包装。
// 解析器在返回之前会剥离它，调用方只会看到 Cause。
type InvocationError struct {
	Target string
	Cause  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("di: invoking %s: %v", e.Target, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// unwrapInvocation 剥离最外层的调用包装，返回原始错误。
// 只处理直接返回的 *InvocationError，用户自己包装过的错误保持原样。
func unwrapInvocation(err error) error {
	for {
		inv, ok := err.(*InvocationError)
		if !ok || inv.Cause == nil {
			return err
		}
		err = inv.Cause
	}
}
