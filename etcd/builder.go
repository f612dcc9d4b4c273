package etcd

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/gocrud/svchost/core"
)

// Builder Etcd 客户端配置构建器
type Builder struct {
	core.BaseBuilder
	configs []ClientOptions
	names   map[string]struct{}
	errors  error
}

// NewBuilder 创建 Etcd 构建器，ctx 可以为 nil
func NewBuilder(ctx *core.BuildContext) *Builder {
	return &Builder{
		BaseBuilder: core.NewBaseBuilder(ctx),
		configs:     make([]ClientOptions, 0),
		names:       make(map[string]struct{}),
	}
}

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*ClientOptions)) *Builder {
	if _, exists := b.names[name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("etcd client '%s' already configured", name))
		return b
	}
	b.names[name] = struct{}{}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}
	opts.Name = name

	if err := opts.Validate(); err != nil {
		b.errors = multierr.Append(b.errors, fmt.Errorf("invalid etcd configuration for '%s': %w", name, err))
		return b
	}
	b.configs = append(b.configs, *opts)
	return b
}

// AddClientFromConfig 添加客户端，配置从 section 绑定
func (b *Builder) AddClientFromConfig(name, section string) *Builder {
	cc := b.ConfigContext()
	if cc == nil {
		b.errors = multierr.Append(b.errors, fmt.Errorf("etcd client '%s': no configuration to bind from", name))
		return b
	}
	return b.AddClient(name, func(o *ClientOptions) {
		if err := cc.GetConfiguration().Bind(section, o); err != nil {
			b.errors = multierr.Append(b.errors, fmt.Errorf("etcd client '%s': bind %q: %w", name, section, err))
		}
	})
}

// Err 返回累积的配置错误
func (b *Builder) Err() error {
	return b.errors
}
