package database

import (
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/gocrud/svchost/core"
)

// Builder 数据库配置构建器
type Builder struct {
	core.BaseBuilder
	configs []Options
	names   map[string]struct{}
	errors  error
}

// NewBuilder 创建构建器，ctx 可以为 nil
func NewBuilder(ctx *core.BuildContext) *Builder {
	return &Builder{
		BaseBuilder: core.NewBaseBuilder(ctx),
		configs:     make([]Options, 0),
		names:       make(map[string]struct{}),
	}
}

// Add 添加数据库配置
// name: 实例名称
// dialector: GORM 驱动 (e.g. sqlite.Open(dsn))
// configure: 可选的配置函数
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*Options)) *Builder {
	if _, exists := b.names[name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("database '%s' already configured", name))
		return b
	}
	b.names[name] = struct{}{}

	opts := NewDefaultOptions(name, dialector)
	if configure != nil {
		configure(opts)
	}
	opts.Name = name

	if err := opts.Validate(); err != nil {
		b.errors = multierr.Append(b.errors, fmt.Errorf("invalid configuration for '%s': %w", name, err))
		return b
	}
	b.configs = append(b.configs, *opts)
	return b
}

// Err 返回累积的配置错误
func (b *Builder) Err() error {
	return b.errors
}
