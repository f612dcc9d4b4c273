package cron

import (
	"fmt"
	"reflect"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// Builder Cron 配置构建器
type Builder struct {
	enableSeconds    bool
	enableCronLogger bool
	location         string
	jobs             []jobDefinition
}

// jobDefinition 任务定义，handler 为 func()、func(context.Context) error
// 或者参数全部从作用域解析的任意函数
type jobDefinition struct {
	spec    string
	name    string
	handler any
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		location: "UTC",
		jobs:     make([]jobDefinition, 0),
	}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.enableSeconds = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.location = location
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.enableCronLogger = true
	return b
}

// AddJob 添加任务。每次执行都会创建新的作用域，
// handler 的参数从该作用域解析，执行结束后作用域被释放。
//
// 示例：
//
//	builder.AddJob("0 */5 * * * *", "sync-data", func(svc *DataService, logger logging.Logger) error {
//	    return svc.Sync()
//	})
func (b *Builder) AddJob(spec, name string, handler any) *Builder {
	b.jobs = append(b.jobs, jobDefinition{
		spec:    spec,
		name:    name,
		handler: handler,
	})
	return b
}

func (b *Builder) parser() cron.Parser {
	if b.enableSeconds {
		return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// validate 检查任务表达式、时区与 handler 类型
func (b *Builder) validate() error {
	if _, err := time.LoadLocation(b.location); err != nil {
		return fmt.Errorf("cron: invalid location %q: %w", b.location, err)
	}

	parser := b.parser()
	names := make(map[string]struct{}, len(b.jobs))
	for _, job := range b.jobs {
		if _, exists := names[job.name]; exists {
			return fmt.Errorf("cron: duplicate job name '%s'", job.name)
		}
		names[job.name] = struct{}{}

		if _, err := parser.Parse(job.spec); err != nil {
			return fmt.Errorf("cron: invalid spec for job '%s': %w", job.name, err)
		}
		if job.handler == nil || reflect.TypeOf(job.handler).Kind() != reflect.Func {
			return fmt.Errorf("cron: handler of job '%s' must be a function, got %T", job.name, job.handler)
		}
	}
	return nil
}

// Build 创建 Cron 托管服务，engine 用于为每次执行创建作用域
func (b *Builder) Build(engine *di.Engine, logger logging.Logger) (*Service, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	loc, _ := time.LoadLocation(b.location)

	opts := []cron.Option{
		cron.WithParser(b.parser()),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if b.enableCronLogger {
		opts = append(opts, cron.WithLogger(newCronLogger(logger)))
	}

	svc := &Service{
		cron:   cron.New(opts...),
		engine: engine,
		logger: logger.WithCategory("cron"),
		jobs:   make(map[string]scheduledJob),
	}
	for _, job := range b.jobs {
		if err := svc.addJob(job); err != nil {
			return nil, err
		}
	}
	return svc, nil
}
