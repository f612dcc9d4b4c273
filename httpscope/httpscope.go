// Package httpscope 为 net/http 处理器提供请求级作用域。
//
// 每个请求进入时创建一个作用域并放入 request context，
// 处理器返回后释放该作用域。
package httpscope

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

type scopeKey struct{}

// ErrNoScope 请求上下文中没有作用域
var ErrNoScope = errors.New("httpscope: request has no service scope")

// Middleware 返回为每个请求创建作用域的中间件
func Middleware(engine *di.Engine, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := engine.CreateScope()
			defer func() {
				if err := scope.Dispose(); err != nil {
					logger.Error("Failed to dispose request scope",
						logging.Field{Key: "scope", Value: scope.ID().String()},
						logging.Field{Key: "error", Value: err.Error()})
				}
			}()
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

// WithScope 把作用域放入 ctx
func WithScope(ctx context.Context, scope *di.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext 取出 ctx 中的作用域
func FromContext(ctx context.Context) (*di.Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*di.Scope)
	return scope, ok
}

// Resolve 从请求作用域解析服务
func Resolve[T any](r *http.Request) (T, error) {
	scope, ok := FromContext(r.Context())
	if !ok {
		var zero T
		return zero, ErrNoScope
	}
	return di.Resolve[T](scope)
}

// MustResolve 解析失败时 panic
func MustResolve[T any](r *http.Request) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// NewRouter 创建已经安装 Recoverer 与作用域中间件的 chi 路由
func NewRouter(engine *di.Engine, logger logging.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(Middleware(engine, logger))
	return r
}
