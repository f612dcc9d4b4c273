package etcd

import (
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/svchost/config"
)

// DefaultClientName 默认客户端名称，该客户端同时以无名称方式注册
const DefaultClientName = "default"

// ClientOptions etcd 客户端配置选项
type ClientOptions struct {
	Name               string        `json:"name" yaml:"name"`                             // 客户端名称
	Endpoints          []string      `json:"endpoints" yaml:"endpoints"`                   // etcd 服务器地址列表
	DialTimeout        time.Duration `json:"dialTimeout" yaml:"dialTimeout"`               // 连接超时时间
	Username           string        `json:"username" yaml:"username"`                     // 用户名（可选）
	Password           string        `json:"password" yaml:"password"`                     // 密码（可选）
	AutoSyncInterval   time.Duration `json:"autoSyncInterval" yaml:"autoSyncInterval"`     // 自动同步间隔（可选）
	MaxCallSendMsgSize int           `json:"maxCallSendMsgSize" yaml:"maxCallSendMsgSize"` // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int           `json:"maxCallRecvMsgSize" yaml:"maxCallRecvMsgSize"` // 最大接收消息大小（可选）
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ClientOptions {
	return &ClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}

func (o *ClientOptions) clientConfig() clientv3.Config {
	cfg := clientv3.Config{
		Endpoints:   o.Endpoints,
		DialTimeout: o.DialTimeout,
	}
	if o.Username != "" {
		cfg.Username = o.Username
		cfg.Password = o.Password
	}
	if o.AutoSyncInterval > 0 {
		cfg.AutoSyncInterval = o.AutoSyncInterval
	}
	if o.MaxCallSendMsgSize > 0 {
		cfg.MaxCallSendMsgSize = o.MaxCallSendMsgSize
	}
	if o.MaxCallRecvMsgSize > 0 {
		cfg.MaxCallRecvMsgSize = o.MaxCallRecvMsgSize
	}
	return cfg
}

// NewClient 按配置创建客户端，连接在第一次请求时建立
func NewClient(opts ClientOptions) (*clientv3.Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	client, err := clientv3.New(opts.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client '%s': %w", opts.Name, err)
	}
	return client, nil
}

// ConfigSource 返回使用同一组连接参数、读取 prefix 下配置的配置源。
// 配置源在服务容器构建之前加载，所以持有自己的连接。
func ConfigSource(opts ClientOptions, prefix string) *config.EtcdSource {
	return config.NewEtcdSource(config.EtcdOptions{
		Endpoints:   opts.Endpoints,
		Username:    opts.Username,
		Password:    opts.Password,
		Prefix:      prefix,
		DialTimeout: opts.DialTimeout,
	})
}
