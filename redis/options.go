package redis

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultClientName 默认客户端名称，该客户端同时以无名称方式注册
const DefaultClientName = "default"

// ClientOptions Redis 客户端配置选项
type ClientOptions struct {
	Name         string        `json:"name" yaml:"name"`                 // 客户端名称
	Addr         string        `json:"addr" yaml:"addr"`                 // Redis 服务器地址 (host:port)
	Password     string        `json:"password" yaml:"password"`         // 密码（可选）
	DB           int           `json:"db" yaml:"db"`                     // 数据库编号
	DialTimeout  time.Duration `json:"dialTimeout" yaml:"dialTimeout"`   // 连接超时时间
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`   // 读取超时时间
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"` // 写入超时时间
	PoolSize     int           `json:"poolSize" yaml:"poolSize"`         // 连接池大小
	MinIdleConns int           `json:"minIdleConns" yaml:"minIdleConns"` // 最小空闲连接数
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries"`     // 最大重试次数
	PingOnCreate bool          `json:"pingOnCreate" yaml:"pingOnCreate"` // 创建客户端时 Ping 一次
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ClientOptions {
	return &ClientOptions{
		Name:         name,
		Addr:         "localhost:6379",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("redis client name is required")
	}
	if o.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if o.DB < 0 {
		return fmt.Errorf("redis database number must be non-negative")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("redis dial timeout must be positive")
	}
	return nil
}

func (o *ClientOptions) redisOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		MaxRetries:   o.MaxRetries,
	}
}
