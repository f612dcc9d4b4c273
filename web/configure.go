package web

import (
	"github.com/gin-gonic/gin"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(b *Builder) { b.UsePort(port) }
}

// WithControllers 添加控制器
func WithControllers(controllers ...any) BuilderOption {
	return func(b *Builder) { b.AddControllers(controllers...) }
}

// WithMiddleware 添加全局中间件
func WithMiddleware(middleware ...gin.HandlerFunc) BuilderOption {
	return func(b *Builder) { b.Use(middleware...) }
}

// New 以选项函数的形式启用 Web
func New(opts ...BuilderOption) core.Configurator {
	return Configure(func(b *Builder) {
		for _, opt := range opts {
			opt(b)
		}
	})
}

// Configure 返回 Web 配置器
// 使用示例: builder.Configure(web.Configure(func(b *web.Builder) { ... }))
//
// 控制器在这里注册到服务集合，Host 以单例托管服务注册，
// 构造时从根作用域取得引擎。
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx.GetLogger())
		if options != nil {
			options(builder)
		}

		if err := builder.RegisterServices(ctx.Services().ServiceCollection); err != nil {
			panic(err)
		}

		ctx.Services().AddHostedService(func(root *di.Scope) *Host {
			return builder.Build(root.Engine())
		})

		ctx.GetLogger().Info("Web host configured",
			logging.Field{Key: "port", Value: builder.port},
			logging.Field{Key: "controllers", Value: len(builder.registeredTypes)})
	}
}
