package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// BuilderOption 用于配置 Redis Builder
type BuilderOption func(*Builder)

// WithClient 添加 Redis 客户端配置
func WithClient(name string, opts ...func(*ClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClient(name, func(o *ClientOptions) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// WithClientFromConfig 添加客户端，配置从应用配置的 section 读取
func WithClientFromConfig(name, section string) BuilderOption {
	return func(b *Builder) { b.AddClientFromConfig(name, section) }
}

// New 以选项函数的形式启用 Redis
func New(opts ...BuilderOption) core.Configurator {
	return Configure(func(b *Builder) {
		for _, opt := range opts {
			opt(b)
		}
	})
}

// Configure 返回 Redis 配置器
// 使用示例: builder.Configure(redis.Configure(func(b *redis.Builder) { ... }))
//
// 注册内容：
//   - *ClientFactory 单例，根作用域释放时关闭全部客户端
//   - 每个客户端以其名称注册为 *redis.Client 单例
//   - 名为 "default" 的客户端同时以无名称方式注册
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		// 配置错误直接 panic
		if err := builder.Err(); err != nil {
			panic(err)
		}

		services := ctx.Services().ServiceCollection
		di.AddSingleton[*ClientFactory](services, func(logger logging.Logger) (*ClientFactory, error) {
			return builder.Build(logger)
		})

		for _, opts := range builder.configs {
			name := opts.Name
			resolve := func(s *di.Scope) (*redis.Client, error) {
				factory, err := di.Resolve[*ClientFactory](s)
				if err != nil {
					return nil, err
				}
				return factory.Get(context.Background(), name)
			}
			di.AddFactory(services, di.Singleton, resolve, di.WithName(name))
			if name == DefaultClientName {
				di.AddFactory(services, di.Singleton, resolve)
			}
		}

		ctx.GetLogger().Info("Redis configured",
			logging.Field{Key: "clients", Value: len(builder.configs)})
	}
}
