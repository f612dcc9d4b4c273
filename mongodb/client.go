package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/mgo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultName 默认客户端名称，该客户端同时以无名称方式注册
const DefaultName = "default"

// Options MongoDB 客户端配置选项
type Options struct {
	Name        string        `json:"name" yaml:"name"`
	URI         string        `json:"uri" yaml:"uri"`
	Username    string        `json:"username" yaml:"username"`
	Password    string        `json:"password" yaml:"password"`
	MaxPoolSize uint64        `json:"maxPoolSize" yaml:"maxPoolSize"`
	MinPoolSize uint64        `json:"minPoolSize" yaml:"minPoolSize"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, uri string) *Options {
	return &Options{
		Name:        name,
		URI:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     10 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongo client name is required")
	}
	if o.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("mongo timeout must be positive")
	}
	return nil
}

func (o *Options) clientOptions() *options.ClientOptions {
	clientOpts := options.Client().SetConnectTimeout(o.Timeout)
	if o.Username != "" || o.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	if o.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(o.MinPoolSize)
	}
	return clientOpts
}

// Client 持有一个 mgo 连接。
// 以单例注册，根作用域释放时断开连接。
type Client struct {
	name    string
	timeout time.Duration
	client  *mgo.Client

	closeOnce sync.Once
	closeErr  error
}

// Connect 创建客户端
func Connect(opts Options) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	client, err := mgo.NewClient(ctx, opts.URI, opts.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client '%s': %w", opts.Name, err)
	}
	return &Client{
		name:    opts.Name,
		timeout: opts.Timeout,
		client:  client,
	}, nil
}

// Name 返回客户端名称
func (c *Client) Name() string { return c.name }

// Mgo 返回底层的 *mgo.Client
func (c *Client) Mgo() *mgo.Client { return c.client }

// Close 断开连接，可以多次调用
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.client.Disconnect(ctx); err != nil {
			c.closeErr = fmt.Errorf("failed to disconnect mongo client '%s': %w", c.name, err)
		}
	})
	return c.closeErr
}
