package database

import (
	"gorm.io/gorm"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// BuilderOption 用于配置 Database Builder
type BuilderOption func(*Builder)

// WithDatabase 添加数据库配置
func WithDatabase(name string, dialector gorm.Dialector, opts ...func(*Options)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, dialector, func(o *Options) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// New 以选项函数的形式启用数据库
func New(opts ...BuilderOption) core.Configurator {
	return Configure(func(b *Builder) {
		for _, opt := range opts {
			opt(b)
		}
	})
}

// Configure 返回数据库配置器
//
// 每个数据库注册：
//   - *Connection 命名单例，第一次解析时打开，根作用域释放时关闭
//   - *gorm.DB 命名单例，取自对应的 *Connection
//   - *Session 命名作用域服务，作用域释放时回滚未提交的事务
//
// 名为 "default" 的数据库同时以无名称方式注册，*gorm.DB 和 *Session
// 通过构造函数注入获得。
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
			ctx.GetLogger().Info("Database configured", logging.Field{Key: "name", Value: opts.Name})
		}
	}
}

func register(services *di.ServiceCollection, opts Options) {
	name := opts.Name
	named := di.WithName(name)

	di.AddFactory(services, di.Singleton, func(s *di.Scope) (*Connection, error) {
		logger, _ := di.Resolve[logging.Logger](s)
		return Open(opts, logger)
	}, named)
	di.AddFactory(services, di.Singleton, func(s *di.Scope) (*gorm.DB, error) {
		conn, err := di.ResolveNamed[*Connection](s, name)
		if err != nil {
			return nil, err
		}
		return conn.DB(), nil
	}, named)
	di.AddFactory(services, di.Scoped, func(s *di.Scope) (*Session, error) {
		db, err := di.ResolveNamed[*gorm.DB](s, name)
		if err != nil {
			return nil, err
		}
		return NewSession(db), nil
	}, named)

	if name != DefaultName {
		return
	}
	di.AddFactory(services, di.Singleton, func(s *di.Scope) (*Connection, error) {
		return di.ResolveNamed[*Connection](s, name)
	})
	di.AddSingleton[*gorm.DB](services, (*Connection).DB)
	di.AddScoped[*Session](services, NewSession)
}
