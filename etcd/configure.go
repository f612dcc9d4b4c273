package etcd

import (
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// BuilderOption 用于配置 Etcd Builder
type BuilderOption func(*Builder)

// WithClient 添加 Etcd 客户端配置
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

// New 以选项函数的形式启用 Etcd
func New(opts ...BuilderOption) core.Configurator {
	return Configure(func(b *Builder) {
		for _, opt := range opts {
			opt(b)
		}
	})
}

// Configure 返回 Etcd 配置器
// 使用示例: builder.Configure(etcd.Configure(func(b *etcd.Builder) { ... }))
//
// 每个客户端以名称注册为 *clientv3.Client 单例，第一次解析时创建，
// 根作用域释放时关闭。"default" 客户端同时以无名称方式注册。
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
		for _, opts := range builder.configs {
			di.AddFactory(services, di.Singleton, func(s *di.Scope) (*clientv3.Client, error) {
				client, err := NewClient(opts)
				if err != nil {
					return nil, err
				}
				if logger, err := di.Resolve[logging.Logger](s); err == nil {
					logger.Info("etcd client created",
						logging.Field{Key: "name", Value: opts.Name},
						logging.Field{Key: "endpoints", Value: fmt.Sprintf("%v", opts.Endpoints)})
				}
				return client, nil
			}, di.WithName(opts.Name))

			if opts.Name == DefaultClientName {
				di.AddFactory(services, di.Singleton, func(s *di.Scope) (*clientv3.Client, error) {
					return di.ResolveNamed[*clientv3.Client](s, DefaultClientName)
				})
			}
		}

		ctx.GetLogger().Info("Etcd configured",
			logging.Field{Key: "clients", Value: len(builder.configs)})
	}
}
