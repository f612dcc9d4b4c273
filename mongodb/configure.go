package mongodb

import (
	"github.com/gocrud/mgo"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// BuilderOption 用于配置 MongoDB Builder
type BuilderOption func(*Builder)

// WithClient 添加 MongoDB 客户端配置
func WithClient(name string, uri string, opts ...func(*Options)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, uri, func(o *Options) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// New 以选项函数的形式启用 MongoDB
func New(opts ...BuilderOption) core.Configurator {
	return Configure(func(b *Builder) {
		for _, opt := range opts {
			opt(b)
		}
	})
}

// Configure 返回 MongoDB 配置器
//
// 每个客户端注册 *Client（根作用域释放时断开）和 *mgo.Client，均按名称注册为单例。
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
			register(services, opts)
			ctx.GetLogger().Info("Mongo client configured",
				logging.Field{Key: "name", Value: opts.Name})
		}
	}
}

func register(services *di.ServiceCollection, opts Options) {
	name := opts.Name
	named := di.WithName(name)

	di.AddFactory(services, di.Singleton, func(*di.Scope) (*Client, error) {
		return Connect(opts)
	}, named)
	di.AddFactory(services, di.Singleton, func(s *di.Scope) (*mgo.Client, error) {
		c, err := di.ResolveNamed[*Client](s, name)
		if err != nil {
			return nil, err
		}
		return c.Mgo(), nil
	}, named)

	if name != DefaultName {
		return
	}
	di.AddFactory(services, di.Singleton, func(s *di.Scope) (*Client, error) {
		return di.ResolveNamed[*Client](s, name)
	})
	di.AddSingleton[*mgo.Client](services, (*Client).Mgo)
}
