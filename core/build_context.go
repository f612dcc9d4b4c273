package core

import (
	"sync"

	"github.com/gocrud/svchost/config"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/hosting"
	"github.com/gocrud/svchost/logging"
)

// Configurator 配置器函数类型
// 配置器用于扩展应用程序，可以注册服务、添加托管服务等
type Configurator func(*BuildContext)

type cleanup struct {
	key string
	fn  func()
}

// BuildContext 构建上下文
// 提供给配置器的上下文环境，包含服务集合、配置、日志等核心组件
type BuildContext struct {
	services       *ServiceCollection
	configuration  *config.ReloadableConfiguration
	logger         logging.Logger
	environment    Environment
	hostedServices []hosting.HostedService
	cleanups       []cleanup
	mu             sync.Mutex
}

// Services 返回服务集合，配置器在这里注册服务
func (c *BuildContext) Services() *ServiceCollection {
	return c.services
}

// AddHostedService 添加已经创建好的托管服务
func (c *BuildContext) AddHostedService(service hosting.HostedService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostedServices = append(c.hostedServices, service)
}

// SetCleanup 设置资源清理函数，同一 key 只保留最后一次设置。
// 清理函数在托管服务停止后、根作用域释放前按注册的逆序执行。
func (c *BuildContext) SetCleanup(key string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.cleanups {
		if c.cleanups[i].key == key {
			c.cleanups[i].fn = fn
			return
		}
	}
	c.cleanups = append(c.cleanups, cleanup{key: key, fn: fn})
}

// GetLogger 获取日志记录器
func (c *BuildContext) GetLogger() logging.Logger {
	return c.logger
}

// GetConfiguration 获取配置对象
func (c *BuildContext) GetConfiguration() config.Configuration {
	return c.configuration
}

// GetEnvironment 获取环境信息
func (c *BuildContext) GetEnvironment() Environment {
	return c.environment
}

// ConfigureOptions 配置选项模式（支持静态、快照和监听三种模式）
// 使用示例: core.ConfigureOptions[AppSetting](ctx, "app")
func ConfigureOptions[T any](ctx *BuildContext, section string) {
	config.AddOptions[T](ctx.services.ServiceCollection, ctx.configuration, section)

	ctx.logger.Info("Configured options",
		logging.Field{Key: "type", Value: di.TypeOf[T]().String()},
		logging.Field{Key: "section", Value: section})
}
