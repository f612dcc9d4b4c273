package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gocrud/svchost/di"
)

// Option 静态配置选项，启动时绑定一次
type Option[T any] interface {
	Value() T
}

// OptionSnapshot 快照配置选项，同一作用域内保持不变
type OptionSnapshot[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项，总是返回最新值
type OptionMonitor[T any] interface {
	Value() T
}

// OptionsCache 绑定后的配置值，配置重新加载时自动更新
type OptionsCache[T any] struct {
	config  Configuration
	section string
	current T
	mu      sync.RWMutex
}

// NewOptionsCache 创建配置缓存，节不存在时使用零值
func NewOptionsCache[T any](config Configuration, section string) *OptionsCache[T] {
	cache := &OptionsCache[T]{
		config:  config,
		section: section,
	}
	_ = cache.reload()

	if rc, ok := config.(interface{ OnReload(func()) }); ok {
		rc.OnReload(func() {
			_ = cache.reload()
		})
	}
	return cache
}

func (c *OptionsCache[T]) reload() error {
	var newValue T
	if err := c.config.Bind(c.section, &newValue); err != nil {
		return fmt.Errorf("failed to bind config section %s: %w", c.section, err)
	}

	c.mu.Lock()
	c.current = newValue
	c.mu.Unlock()
	return nil
}

// Get 获取当前配置值
func (c *OptionsCache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Snapshot 返回当前值的深拷贝
func (c *OptionsCache[T]) Snapshot() T {
	current := c.Get()

	data, err := json.Marshal(current)
	if err != nil {
		return current
	}
	var snapshot T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return current
	}
	return snapshot
}

type option[T any] struct {
	value T
}

func (o *option[T]) Value() T {
	return o.value
}

// NewOption 创建静态配置选项
func NewOption[T any](value T) Option[T] {
	return &option[T]{value: value}
}

type optionSnapshot[T any] struct {
	snapshot T
}

func (o *optionSnapshot[T]) Value() T {
	return o.snapshot
}

// NewOptionSnapshot 创建快照配置选项
func NewOptionSnapshot[T any](snapshot T) OptionSnapshot[T] {
	return &optionSnapshot[T]{snapshot: snapshot}
}

type optionMonitor[T any] struct {
	cache *OptionsCache[T]
}

func (o *optionMonitor[T]) Value() T {
	return o.cache.Get()
}

// NewOptionMonitor 创建监听配置选项
func NewOptionMonitor[T any](cache *OptionsCache[T]) OptionMonitor[T] {
	return &optionMonitor[T]{cache: cache}
}

// AddOptions 把配置节 section 绑定为 T 并注册到服务集合：
// Option[T] 与 OptionMonitor[T] 为单例，OptionSnapshot[T] 每个作用域一份。
func AddOptions[T any](services *di.ServiceCollection, cfg Configuration, section string) {
	cache := NewOptionsCache[T](cfg, section)

	di.AddInstance(services, cache)
	di.AddInstance(services, NewOption(cache.Get()))
	di.AddInstance(services, NewOptionMonitor(cache))
	di.AddFactory(services, di.Scoped, func(*di.Scope) (OptionSnapshot[T], error) {
		return NewOptionSnapshot(cache.Snapshot()), nil
	})
}

// AddConfiguration 注册配置。Configuration 以常量注册，
// *ReloadableConfiguration 由根作用域持有，根作用域释放时关闭配置源。
func AddConfiguration(services *di.ServiceCollection, cfg *ReloadableConfiguration) {
	di.AddInstance[Configuration](services, cfg)
	di.AddFactory(services, di.Singleton, func(*di.Scope) (*ReloadableConfiguration, error) {
		return cfg, nil
	})
}
