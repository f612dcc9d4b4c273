package core

import (
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/hosting"
	"github.com/gocrud/svchost/logging"
)

// ServiceCollection 应用的服务集合，在 di.ServiceCollection 上增加托管服务注册
type ServiceCollection struct {
	*di.ServiceCollection
	logger logging.Logger
}

// Logger 返回应用日志记录器
func (s *ServiceCollection) Logger() logging.Logger {
	return s.logger
}

// AddHostedService 注册托管服务（构造函数、实例或 reflect.Type），
// 以单例注册为 hosting.HostedService，启动时按注册顺序全部解析。
func (s *ServiceCollection) AddHostedService(impl any, opts ...di.Option) {
	di.AddSingleton[hosting.HostedService](s.ServiceCollection, impl, opts...)
}

// AddSingleton 将 T 绑定到实现 impl，并注册为单例
// impl 可以是实例、构造函数或 reflect.Type
//
// 示例:
//
//	core.AddSingleton[IService](services, NewServiceImpl)
func AddSingleton[T any](s *ServiceCollection, impl any, opts ...di.Option) {
	di.AddSingleton[T](s.ServiceCollection, impl, opts...)
}

// AddTransient 将 T 绑定到实现 impl，并注册为瞬态服务
//
// 示例:
//
//	core.AddTransient[IWorker](services, NewWorker)
func AddTransient[T any](s *ServiceCollection, impl any, opts ...di.Option) {
	di.AddTransient[T](s.ServiceCollection, impl, opts...)
}

// AddScoped 将 T 绑定到实现 impl，并注册为作用域服务
//
// 示例:
//
//	core.AddScoped[IRequestScope](services, NewRequestScope)
func AddScoped[T any](s *ServiceCollection, impl any, opts ...di.Option) {
	di.AddScoped[T](s.ServiceCollection, impl, opts...)
}
