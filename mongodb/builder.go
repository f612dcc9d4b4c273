package mongodb

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/gocrud/svchost/core"
)

// Builder MongoDB 配置构建器
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

// Add 添加 MongoDB 客户端配置
func (b *Builder) Add(name string, uri string, configure func(*Options)) *Builder {
	if _, exists := b.names[name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("mongo client '%s' already configured", name))
		return b
	}
	b.names[name] = struct{}{}

	opts := NewDefaultOptions(name, uri)
	if configure != nil {
		configure(opts)
	}
	opts.Name = name

	if err := opts.Validate(); err != nil {
		b.errors = multierr.Append(b.errors, fmt.Errorf("invalid mongo configuration for '%s': %w", name, err))
		return b
	}
	b.configs = append(b.configs, *opts)
	return b
}

// Err 返回累积的配置错误
func (b *Builder) Err() error {
	return b.errors
}
