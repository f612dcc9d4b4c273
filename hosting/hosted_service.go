package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/gocrud/svchost/logging"
)

// HostedService 托管服务接口（类似于 .NET Core IHostedService）
// 框架会在独立的 goroutine 中调用 Start，用户无需自己启动 goroutine
type HostedService interface {
	// Start 启动服务。该方法应阻塞执行，直到 context 被取消或发生错误。
	Start(ctx context.Context) error

	// Stop 执行额外的清理工作。Start 的 context 被取消时服务应自行退出。
	Stop(ctx context.Context) error
}

// HostedServiceManager 托管服务管理器。
// 任一服务返回错误会取消其余服务的 context。
type HostedServiceManager struct {
	services []HostedService
	logger   logging.Logger
	mu       sync.RWMutex
	done     chan struct{}
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &HostedServiceManager{
		services: make([]HostedService, 0),
		logger:   logger.WithCategory("hosting"),
	}
}

// Add 添加托管服务
func (m *HostedServiceManager) Add(services ...HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, services...)
}

// Len 返回托管服务数量
func (m *HostedServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 并发启动所有托管服务。
// 返回的通道最多收到一个错误（第一个失败的服务），全部服务退出后关闭。
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.Lock()
	services := make([]HostedService, len(m.services))
	copy(services, m.services)
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	errCh := make(chan error, 1)
	g, gctx := errgroup.WithContext(ctx)

	m.logger.Info("Starting hosted services", logging.Field{Key: "count", Value: len(services)})

	for _, service := range services {
		g.Go(func() error {
			name := serviceName(service)
			m.logger.Debug("Starting hosted service", logging.Field{Key: "service", Value: name})

			err := service.Start(gctx)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				m.logger.Debug("Hosted service exited", logging.Field{Key: "service", Value: name})
				return nil
			}

			m.logger.Error("Hosted service failed",
				logging.Field{Key: "service", Value: name},
				logging.Field{Key: "error", Value: err})
			return fmt.Errorf("hosted service %s: %w", name, err)
		})
	}

	go func() {
		defer close(done)
		defer close(errCh)
		if err := g.Wait(); err != nil {
			errCh <- err
		}
	}()

	return errCh
}

// StopAll 反向并发停止所有托管服务，汇总 Stop 返回的错误
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	services := make([]HostedService, len(m.services))
	copy(services, m.services)
	m.mu.RUnlock()

	m.logger.Info("Stopping hosted services", logging.Field{Key: "count", Value: len(services)})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for i := len(services) - 1; i >= 0; i-- {
		service := services[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := serviceName(service)
			if err := service.Stop(ctx); err != nil {
				m.logger.Error("Failed to stop hosted service",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err})
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("stop %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errs
}

// Wait 等待 StartAll 启动的服务全部退出
func (m *HostedServiceManager) Wait() {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func serviceName(s HostedService) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// FuncService 把一个函数包装为托管服务
type FuncService struct {
	name string
	task func(ctx context.Context) error
}

// NewFuncService 创建函数式托管服务
func NewFuncService(name string, task func(ctx context.Context) error) *FuncService {
	return &FuncService{name: name, task: task}
}

func (f *FuncService) Name() string                    { return f.name }
func (f *FuncService) Start(ctx context.Context) error { return f.task(ctx) }
func (f *FuncService) Stop(context.Context) error      { return nil }

// TimedHostedService 按固定间隔执行任务的托管服务，任务失败只记录日志
type TimedHostedService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	logger   logging.Logger
}

// NewTimedHostedService 创建定时托管服务
func NewTimedHostedService(name string, interval time.Duration, task func(ctx context.Context) error, logger logging.Logger) *TimedHostedService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &TimedHostedService{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger.WithFields(logging.Field{Key: "service", Value: name}),
	}
}

func (s *TimedHostedService) Name() string { return s.name }

func (s *TimedHostedService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.task(ctx); err != nil {
				s.logger.Error("Timed task failed", logging.Field{Key: "error", Value: err})
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *TimedHostedService) Stop(context.Context) error { return nil }
