package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// Service Cron 定时任务托管服务
type Service struct {
	cron   *cron.Cron
	engine *di.Engine
	logger logging.Logger

	mu     sync.RWMutex
	jobs   map[string]scheduledJob
	runCtx context.Context
}

type scheduledJob struct {
	id  cron.EntryID
	def jobDefinition
}

func (s *Service) Name() string { return "cron" }

func (s *Service) addJob(job jobDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(job.spec, func() {
		if err := s.runJob(job); err != nil {
			s.logger.Error("Cron job failed",
				logging.Field{Key: "job", Value: job.name},
				logging.Field{Key: "error", Value: err})
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job '%s': %w", job.name, err)
	}

	s.jobs[job.name] = scheduledJob{id: entryID, def: job}
	s.logger.Info("Cron job registered",
		logging.Field{Key: "job", Value: job.name},
		logging.Field{Key: "spec", Value: job.spec})
	return nil
}

// runJob 在新作用域中执行一次任务，作用域随任务结束释放
func (s *Service) runJob(job jobDefinition) (err error) {
	start := time.Now()
	scope := s.engine.CreateScope()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cron job '%s' panicked: %v", job.name, r)
		}
		if derr := scope.Dispose(); derr != nil && err == nil {
			err = derr
		}
		s.logger.Debug("Cron job completed",
			logging.Field{Key: "job", Value: job.name},
			logging.Field{Key: "scope", Value: scope.ID().String()},
			logging.Field{Key: "elapsed", Value: time.Since(start).String()})
	}()

	switch h := job.handler.(type) {
	case func():
		h()
		return nil
	case func(context.Context) error:
		return h(s.jobContext())
	default:
		return di.Invoke(scope, h)
	}
}

func (s *Service) jobContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}

// Trigger 在当前 goroutine 立即执行指定任务一次，返回任务的错误
func (s *Service) Trigger(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("cron job '%s' not found", name)
	}
	return s.runJob(job.def)
}

// RemoveJob 移除定时任务
func (s *Service) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[name]; exists {
		s.cron.Remove(job.id)
		delete(s.jobs, name)
		s.logger.Info("Cron job removed", logging.Field{Key: "job", Value: name})
	}
}

// Jobs 返回已注册的任务名称与下次执行时间
func (s *Service) Jobs() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.jobs))
	for name, job := range s.jobs {
		out[name] = s.cron.Entry(job.id).Next
	}
	return out
}

// Start 启动调度器并阻塞到 ctx 取消
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	count := len(s.jobs)
	s.mu.Unlock()

	s.logger.Info("CronService starting", logging.Field{Key: "jobs", Value: count})
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("CronService stopping")

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 把框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: err})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
