package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/gocrud/svchost/logging"
)

// ClientFactory Redis 客户端工厂，客户端在第一次获取时创建。
// 工厂以单例注册，根作用域释放时关闭所有已创建的客户端。
type ClientFactory struct {
	mu      sync.Mutex
	options map[string]ClientOptions
	clients map[string]*redis.Client
	logger  logging.Logger
	closed  bool
}

// NewClientFactory 创建客户端工厂
func NewClientFactory(logger logging.Logger, options ...ClientOptions) (*ClientFactory, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	f := &ClientFactory{
		options: make(map[string]ClientOptions, len(options)),
		clients: make(map[string]*redis.Client),
		logger:  logger.WithCategory("redis"),
	}
	for _, opts := range options {
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("invalid redis configuration for '%s': %w", opts.Name, err)
		}
		if _, exists := f.options[opts.Name]; exists {
			return nil, fmt.Errorf("redis client '%s' already configured", opts.Name)
		}
		f.options[opts.Name] = opts
	}
	return f, nil
}

// Names 返回已配置的客户端名称
func (f *ClientFactory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.options))
	for name := range f.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get 获取指定名称的 Redis 客户端
func (f *ClientFactory) Get(ctx context.Context, name string) (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, redis.ErrClosed
	}
	if client, ok := f.clients[name]; ok {
		return client, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("redis client '%s' not found", name)
	}

	client := redis.NewClient(opts.redisOptions())
	if opts.PingOnCreate {
		pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis '%s': %w", name, err)
		}
	}

	f.clients[name] = client
	f.logger.Info("redis client created",
		logging.Field{Key: "name", Value: name},
		logging.Field{Key: "addr", Value: opts.Addr},
		logging.Field{Key: "db", Value: opts.DB})
	return client, nil
}

// Close 关闭所有 Redis 客户端，已被单独关闭的客户端忽略
func (f *ClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for name, client := range f.clients {
		if cerr := client.Close(); cerr != nil && !errors.Is(cerr, redis.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("failed to close client '%s': %w", name, cerr))
		}
	}
	f.clients = make(map[string]*redis.Client)
	f.closed = true
	return err
}
