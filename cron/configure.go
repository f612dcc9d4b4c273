package cron

import (
	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// BuilderOption 用于配置 Cron Builder
type BuilderOption func(*Builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *Builder) { b.WithSeconds() }
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *Builder) { b.WithLocation(location) }
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *Builder) { b.EnableCronLogger() }
}

// AddJob 添加任务
func AddJob(spec, name string, handler any) BuilderOption {
	return func(b *Builder) { b.AddJob(spec, name, handler) }
}

// New 以选项函数的形式启用 Cron
func New(opts ...BuilderOption) core.Configurator {
	return Configure(func(b *Builder) {
		for _, opt := range opts {
			opt(b)
		}
	})
}

// Configure 返回 Cron 配置器
// 使用示例: builder.Configure(cron.Configure(func(b *cron.Builder) { ... }))
//
// Cron 服务以单例托管服务注册，构造时从根作用域取得引擎，
// 任务执行时再为每次执行创建作用域。
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		// 配置错误直接 panic
		if err := builder.validate(); err != nil {
			panic(err)
		}

		ctx.Services().AddHostedService(func(root *di.Scope, logger logging.Logger) (*Service, error) {
			return builder.Build(root.Engine(), logger)
		})

		ctx.GetLogger().Info("Cron service configured",
			logging.Field{Key: "jobs", Value: len(builder.jobs)})
	}
}
