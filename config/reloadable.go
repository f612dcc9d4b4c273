package config

import (
	"context"
	"io"
	"sync"

	"go.uber.org/multierr"
)

// WatchableSource 支持变更监听的配置源
type WatchableSource interface {
	ConfigurationSource
	StartWatch(ctx context.Context, onChange func()) error
	StopWatch()
}

// ReloadableConfiguration 可重新加载的配置。
// 重新加载会原子替换底层数据，已取得的节视图随之更新。
type ReloadableConfiguration struct {
	*configuration
	sources []ConfigurationSource

	reloadMu  sync.Mutex
	mu        sync.RWMutex
	callbacks []func()
}

func newReloadableConfiguration(sources []ConfigurationSource) *ReloadableConfiguration {
	return &ReloadableConfiguration{
		configuration: &configuration{store: NewValueStore()},
		sources:       sources,
	}
}

func (c *ReloadableConfiguration) load() error {
	data, err := loadSources(c.sources)
	if err != nil {
		return err
	}
	c.store.Store(data)
	return nil
}

// Reload 重新加载所有配置源，失败时保留旧数据
func (c *ReloadableConfiguration) Reload() error {
	c.reloadMu.Lock()
	err := c.load()
	c.reloadMu.Unlock()
	if err != nil {
		return err
	}

	c.mu.RLock()
	callbacks := make([]func(), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnReload 注册重新加载成功后的回调
func (c *ReloadableConfiguration) OnReload(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Sources 返回配置源列表
func (c *ReloadableConfiguration) Sources() []ConfigurationSource {
	return c.sources
}

// Watch 启动所有可监听配置源，变更时自动 Reload。
// onError 接收重新加载失败，可以为 nil。
func (c *ReloadableConfiguration) Watch(ctx context.Context, onError func(error)) error {
	var errs error
	for _, source := range c.sources {
		ws, ok := source.(WatchableSource)
		if !ok {
			continue
		}
		err := ws.StartWatch(ctx, func() {
			if err := c.Reload(); err != nil && onError != nil {
				onError(err)
			}
		})
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Close 停止监听并关闭持有资源的配置源
func (c *ReloadableConfiguration) Close() error {
	var errs error
	for _, source := range c.sources {
		if ws, ok := source.(WatchableSource); ok {
			ws.StopWatch()
		}
		if closer, ok := source.(io.Closer); ok {
			errs = multierr.Append(errs, closer.Close())
		}
	}
	return errs
}
