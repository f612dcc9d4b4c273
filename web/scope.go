package web

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

const scopeKey = "svchost.scope"

// ErrNoRequestScope 当前请求没有经过 RequestScope 中间件
var ErrNoRequestScope = errors.New("web: request has no service scope")

var ginContextType = reflect.TypeOf((*gin.Context)(nil))

// RequestScope 返回为每个请求创建作用域的中间件，请求结束后释放作用域。
// Builder 会自动安装它，单独使用 gin 时可以手动添加。
func RequestScope(engine *di.Engine, logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(c *gin.Context) {
		serveScoped(c, engine, logger)
	}
}

func serveScoped(c *gin.Context, engine *di.Engine, logger logging.Logger) {
	scope := engine.CreateScope()
	c.Set(scopeKey, scope)
	defer func() {
		if err := scope.Dispose(); err != nil {
			logger.Error("Failed to dispose request scope",
				logging.Field{Key: "scope", Value: scope.ID().String()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}()
	c.Next()
}

// ScopeFrom 获取当前请求的作用域
func ScopeFrom(c *gin.Context) (*di.Scope, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return nil, false
	}
	scope, ok := v.(*di.Scope)
	return scope, ok
}

// Resolve 从当前请求的作用域解析服务
func Resolve[T any](c *gin.Context) (T, error) {
	scope, ok := ScopeFrom(c)
	if !ok {
		var zero T
		return zero, ErrNoRequestScope
	}
	return di.Resolve[T](scope)
}

// MustResolve 解析失败时 panic，由 Recovery 中间件转换为 500
func MustResolve[T any](c *gin.Context) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

// Handle 把参数从请求作用域解析的函数包装为 gin 处理器。
// *gin.Context 参数直接传入当前上下文；函数最后一个返回值为 error 且不为 nil 时
// 以 500 响应。
//
//	router.GET("/users/:id", web.Handle(func(c *gin.Context, repo *UserRepository) error {
//	    ...
//	}))
func Handle(fn any) gin.HandlerFunc {
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		panic(fmt.Sprintf("web: Handle expects a function, got %T", fn))
	}
	fnType := fnVal.Type()
	returnsErr := fnType.NumOut() > 0 && fnType.Out(fnType.NumOut()-1) == reflect.TypeOf((*error)(nil)).Elem()

	return func(c *gin.Context) {
		scope, ok := ScopeFrom(c)
		if !ok {
			abortWithError(c, ErrNoRequestScope)
			return
		}

		args := make([]reflect.Value, fnType.NumIn())
		for i := range args {
			in := fnType.In(i)
			if in == ginContextType {
				args[i] = reflect.ValueOf(c)
				continue
			}
			v, err := scope.GetService(in)
			if err != nil {
				abortWithError(c, err)
				return
			}
			if v == nil {
				args[i] = reflect.Zero(in)
			} else {
				args[i] = reflect.ValueOf(v)
			}
		}

		out := fnVal.Call(args)
		if returnsErr {
			if err, _ := out[len(out)-1].Interface().(error); err != nil {
				abortWithError(c, err)
			}
		}
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
