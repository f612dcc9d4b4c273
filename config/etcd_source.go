package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdOptions etcd 配置源选项
type EtcdOptions struct {
	Endpoints   []string
	Username    string
	Password    string
	Prefix      string        // 键前缀，例如 /app/config/
	Timeout     time.Duration // 单次读取超时
	DialTimeout time.Duration
}

// EtcdSource 从 etcd 前缀读取配置，/app/config/server/port 映射为 server:port
type EtcdSource struct {
	opts EtcdOptions

	mu     sync.Mutex
	client *clientv3.Client
	shared bool
	cancel context.CancelFunc
}

// NewEtcdSource 创建 etcd 配置源，连接在首次加载时建立
func NewEtcdSource(opts EtcdOptions) *EtcdSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = []string{"localhost:2379"}
	}
	return &EtcdSource{opts: opts}
}

// NewEtcdSourceWithClient 使用已有客户端创建配置源，客户端由调用方关闭
func NewEtcdSourceWithClient(client *clientv3.Client, prefix string) *EtcdSource {
	s := NewEtcdSource(EtcdOptions{Prefix: prefix})
	s.client = client
	s.shared = true
	return s
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%s)", s.opts.Prefix)
}

func (s *EtcdSource) connect() (*clientv3.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   s.opts.Endpoints,
		Username:    s.opts.Username,
		Password:    s.opts.Password,
		DialTimeout: s.opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *EtcdSource) Load() (map[string]any, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	resp, err := client.Get(ctx, s.opts.Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to read etcd prefix %s: %w", s.opts.Prefix, err)
	}

	pairs := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		pairs[string(kv.Key)] = string(kv.Value)
	}
	return decodeEtcdPairs(s.opts.Prefix, pairs), nil
}

// StartWatch 监听前缀下的变更，每批事件触发一次 onChange
func (s *EtcdSource) StartWatch(ctx context.Context, onChange func()) error {
	client, err := s.connect()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	ch := client.Watch(watchCtx, s.opts.Prefix, clientv3.WithPrefix())
	go func() {
		for resp := range ch {
			if resp.Err() != nil || len(resp.Events) == 0 {
				continue
			}
			onChange()
		}
	}()
	return nil
}

// StopWatch 停止监听
func (s *EtcdSource) StopWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close 停止监听并关闭自己创建的客户端
func (s *EtcdSource) Close() error {
	s.StopWatch()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.shared {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// decodeEtcdPairs 把 etcd 键值转换为嵌套配置，键名规则与环境变量相同
func decodeEtcdPairs(prefix string, pairs map[string]string) map[string]any {
	result := make(map[string]any)
	for key, value := range pairs {
		key = strings.Trim(strings.TrimPrefix(key, prefix), "/")
		if key == "" {
			continue
		}
		key = strings.ReplaceAll(strings.ToLower(key), "/", ":")
		setNestedValue(result, key, value)
	}
	return result
}
