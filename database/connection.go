package database

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/gocrud/svchost/logging"
)

// DefaultName 默认数据库名称，该数据库同时以无名称方式注册
const DefaultName = "default"

// Options 数据库配置选项
type Options struct {
	Name         string
	Dialector    gorm.Dialector
	GormConfig   *gorm.Config
	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
	AutoMigrate  []any // 需要自动迁移的模型
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, dialector gorm.Dialector) *Options {
	return &Options{
		Name:         name,
		Dialector:    dialector,
		GormConfig:   &gorm.Config{},
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
		AutoMigrate:  make([]any, 0),
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if o.Dialector == nil {
		return fmt.Errorf("database dialector is required")
	}
	return nil
}

// Connection 一个已打开的数据库连接池。
// 以单例注册，根作用域释放时关闭。
type Connection struct {
	name      string
	db        *gorm.DB
	closeOnce sync.Once
	closeErr  error
}

// Open 打开数据库连接并执行自动迁移
func Open(opts Options, logger logging.Logger) (*Connection, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	gormConfig := opts.GormConfig
	if gormConfig == nil {
		gormConfig = &gorm.Config{}
	}
	if gormConfig.Logger == nil {
		gormConfig.Logger = newGormLogger(logger.WithCategory("database"))
	}

	db, err := gorm.Open(opts.Dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", opts.Name, err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("auto migrate failed for '%s': %w", opts.Name, err)
		}
	}

	logger.Info("Database opened",
		logging.Field{Key: "name", Value: opts.Name},
		logging.Field{Key: "dialector", Value: opts.Dialector.Name()})
	return &Connection{name: opts.Name, db: db}, nil
}

// Name 返回数据库名称
func (c *Connection) Name() string { return c.name }

// DB 返回 gorm 句柄
func (c *Connection) DB() *gorm.DB { return c.db }

// Close 关闭底层连接池，可以多次调用
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		sqlDB, err := c.db.DB()
		if err != nil {
			c.closeErr = fmt.Errorf("failed to get sql.DB for '%s': %w", c.name, err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			c.closeErr = fmt.Errorf("failed to close database '%s': %w", c.name, err)
		}
	})
	return c.closeErr
}
