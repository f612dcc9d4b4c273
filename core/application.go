package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/svchost/config"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/hosting"
	"github.com/gocrud/svchost/logging"
)

// ErrAlreadyRunning 应用已经在运行
var ErrAlreadyRunning = errors.New("application is already running")

// Application 应用程序接口
type Application interface {
	Run() error
	RunAsync(ctx context.Context) error
	Stop(ctx context.Context) error
	Services() *di.Engine
	Configuration() config.Configuration
	Logger() logging.Logger
	Environment() Environment
	GetService(ptr any) error
}

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	environment          string
	configBuilder        *config.ConfigurationBuilder
	loggingBuilder       *logging.LoggingBuilder
	serviceConfigurators []func(*ServiceCollection)
	configurators        []Configurator
	buildOptions         []di.BuildOption
	shutdownTimeout      time.Duration
	handleSignals        bool
	mu                   sync.RWMutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		environment:          "development",
		configBuilder:        config.NewConfigurationBuilder(),
		loggingBuilder:       logging.NewLoggingBuilder(),
		serviceConfigurators: make([]func(*ServiceCollection), 0),
		configurators:        make([]Configurator, 0),
		shutdownTimeout:      30 * time.Second,
		handleSignals:        true,
	}
}

// UseEnvironment 设置环境
func (b *ApplicationBuilder) UseEnvironment(env string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// ConfigureConfiguration 配置配置系统
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureServices 配置服务
func (b *ApplicationBuilder) ConfigureServices(configure func(*ServiceCollection)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.serviceConfigurators = append(b.serviceConfigurators, configure)
	}
	return b
}

// Configure 添加配置器
func (b *ApplicationBuilder) Configure(configurators ...Configurator) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range configurators {
		if c != nil {
			b.configurators = append(b.configurators, c)
		}
	}
	return b
}

// AddExtension 添加应用程序扩展
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	b.mu.Lock()
	defer b.mu.Unlock()

	if sc, ok := ext.(ServiceConfigurator); ok {
		b.serviceConfigurators = append(b.serviceConfigurators, sc.ConfigureServices)
	}
	if ac, ok := ext.(AppConfigurator); ok {
		b.configurators = append(b.configurators, ac.ConfigureBuilder)
	}
	return b
}

// AddOptions 注册配置选项
// 使用示例: core.AddOptions[AppSetting](builder, "app")
func AddOptions[T any](b *ApplicationBuilder, section string) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ConfigureOptions[T](ctx, section)
	})
}

// AddTask 添加一个简单的后台任务
func (b *ApplicationBuilder) AddTask(task func(ctx context.Context) error) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ctx.AddHostedService(hosting.NewFuncService("task", task))
	})
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// UseServiceProviderOptions 设置引擎构建选项，例如 di.WithValidateScopes()
func (b *ApplicationBuilder) UseServiceProviderOptions(opts ...di.BuildOption) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buildOptions = append(b.buildOptions, opts...)
	return b
}

// DisableSignalHandling 不监听 SIGINT/SIGTERM，由调用方通过 context 或 Stop 结束应用
func (b *ApplicationBuilder) DisableSignalHandling() *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handleSignals = false
	return b
}

// Build 构建应用程序。
// 依次构建配置、日志、服务集合，执行配置器后构建解析引擎并解析全部托管服务。
func (b *ApplicationBuilder) Build() (Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	configuration, err := b.configBuilder.BuildReloadable()
	if err != nil {
		return nil, fmt.Errorf("failed to build configuration: %w", err)
	}

	loggerFactory := b.loggingBuilder.Build()
	logger := loggerFactory.CreateLogger("Application")
	env := NewEnvironment(b.environment)

	logger.Info("Building application",
		logging.Field{Key: "environment", Value: b.environment})

	services := &ServiceCollection{
		ServiceCollection: di.NewServiceCollection(),
		logger:            logger,
	}
	config.AddConfiguration(services.ServiceCollection, configuration)
	di.AddInstance(services.ServiceCollection, loggerFactory)
	di.AddInstance(services.ServiceCollection, logger)
	di.AddInstance(services.ServiceCollection, env)

	ctx := &BuildContext{
		services:      services,
		configuration: configuration,
		logger:        logger,
		environment:   env,
	}

	for _, configurator := range b.configurators {
		configurator(ctx)
	}
	for _, configurator := range b.serviceConfigurators {
		configurator(services)
	}

	opts := append([]di.BuildOption{di.WithLogger(logger)}, b.buildOptions...)
	engine, err := services.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build service engine: %w", err)
	}
	logger.Info("Service engine built successfully",
		logging.Field{Key: "services", Value: services.Len()})

	// 由根作用域持有配置，释放时停止监听
	if _, err := di.Resolve[*config.ReloadableConfiguration](engine); err != nil {
		_ = engine.Dispose()
		return nil, err
	}

	hostedServices := make([]hosting.HostedService, 0, len(ctx.hostedServices))
	hostedServices = append(hostedServices, ctx.hostedServices...)

	registered, err := di.ResolveAll[hosting.HostedService](engine)
	if err != nil {
		_ = engine.Dispose()
		return nil, fmt.Errorf("failed to resolve hosted services: %w", err)
	}
	hostedServices = append(hostedServices, registered...)

	return &application{
		engine:          engine,
		configuration:   configuration,
		loggerFactory:   loggerFactory,
		logger:          logger,
		environment:     env,
		hostedServices:  hostedServices,
		cleanups:        ctx.cleanups,
		shutdownTimeout: b.shutdownTimeout,
		handleSignals:   b.handleSignals,
		stopCh:          make(chan struct{}),
	}, nil
}

// application 应用程序实现
type application struct {
	engine          *di.Engine
	configuration   *config.ReloadableConfiguration
	loggerFactory   logging.LoggerFactory
	logger          logging.Logger
	environment     Environment
	hostedServices  []hosting.HostedService
	cleanups        []cleanup
	shutdownTimeout time.Duration
	handleSignals   bool
	stopCh          chan struct{}
	stopOnce        sync.Once
	running         bool
	mu              sync.Mutex
}

// Run 运行应用程序（阻塞）
func (a *application) Run() error {
	return a.RunAsync(context.Background())
}

// RunAsync 运行应用程序，直到收到信号、ctx 取消、Stop 被调用或托管服务失败。
// 返回后根作用域已经释放，应用不能再次运行。
func (a *application) RunAsync(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	a.logger.Info("Starting application",
		logging.Field{Key: "environment", Value: a.environment.Name()})

	if err := a.configuration.Watch(runCtx, func(err error) {
		a.logger.Error("Failed to reload configuration", logging.Field{Key: "error", Value: err})
	}); err != nil {
		a.logger.Warn("Failed to start config watch", logging.Field{Key: "error", Value: err})
	}

	manager := hosting.NewHostedServiceManager(a.logger)
	manager.Add(a.hostedServices...)
	errCh := manager.StartAll(runCtx)

	a.logger.Info("Application started successfully")

	var sigCh chan os.Signal
	if a.handleSignals {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	runErr := a.wait(ctx, sigCh, errCh)

	a.logger.Info("Shutting down application",
		logging.Field{Key: "timeout", Value: a.shutdownTimeout.String()})
	runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := manager.StopAll(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop hosted services", logging.Field{Key: "error", Value: err})
	}
	manager.Wait()

	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.logger.Debug("Running cleanup", logging.Field{Key: "key", Value: a.cleanups[i].key})
		a.cleanups[i].fn()
	}

	if err := a.engine.Dispose(); err != nil {
		a.logger.Error("Failed to dispose root scope", logging.Field{Key: "error", Value: err})
	}

	a.logger.Info("Application stopped")
	if closer, ok := a.loggerFactory.(io.Closer); ok {
		_ = closer.Close()
	}
	return runErr
}

// wait 阻塞到需要关闭为止。托管服务全部正常退出时应用继续运行。
func (a *application) wait(ctx context.Context, sigCh <-chan os.Signal, errCh <-chan error) error {
	for {
		select {
		case sig := <-sigCh:
			a.logger.Info("Received shutdown signal", logging.Field{Key: "signal", Value: sig.String()})
			return nil
		case <-a.stopCh:
			a.logger.Info("Application stop requested")
			return nil
		case <-ctx.Done():
			a.logger.Info("Context cancelled")
			return nil
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			a.logger.Error("Hosted service failed, stopping application", logging.Field{Key: "error", Value: err})
			return err
		}
	}
}

// Stop 请求停止应用程序，可以多次调用
func (a *application) Stop(context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	return nil
}

// Services 获取解析引擎
func (a *application) Services() *di.Engine {
	return a.engine
}

// Configuration 获取配置
func (a *application) Configuration() config.Configuration {
	return a.configuration
}

// Logger 获取日志记录器
func (a *application) Logger() logging.Logger {
	return a.logger
}

// Environment 获取环境
func (a *application) Environment() Environment {
	return a.environment
}

// GetService 从根作用域解析服务并写入指针参数
//
// 使用示例：
//
//	var myService *MyService
//	err := app.GetService(&myService)
func (a *application) GetService(ptr any) error {
	ptrValue := reflect.ValueOf(ptr)
	if ptrValue.Kind() != reflect.Pointer || ptrValue.IsNil() {
		return fmt.Errorf("app: GetService argument must be a non-nil pointer, got %T", ptr)
	}

	elemValue := ptrValue.Elem()
	instance, err := a.engine.GetService(elemValue.Type())
	if err != nil {
		return err
	}
	if instance == nil {
		elemValue.SetZero()
		return nil
	}
	elemValue.Set(reflect.ValueOf(instance))
	return nil
}
