package web

import (
	"fmt"
	"net/http"
	"reflect"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// Controller 控制器接口，启动时从容器解析后挂载路由
type Controller interface {
	// MountRoutes 注册路由
	MountRoutes(router gin.IRouter)
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	logger          logging.Logger
	port            int
	engine          *gin.Engine
	controllers     []any
	registeredTypes []reflect.Type
	services        atomic.Pointer[di.Engine]
}

// NewBuilder 创建 Web 构建器
func NewBuilder(logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Nop()
	}

	// 设置 Gin 为发布模式（默认）
	gin.SetMode(gin.ReleaseMode)

	b := &Builder{
		logger:      logger.WithCategory("web"),
		port:        8080,
		engine:      gin.New(),
		controllers: make([]any, 0),
	}

	// 默认中间件：恢复 panic，为每个请求创建作用域
	b.engine.Use(gin.Recovery(), b.requestScope)
	return b
}

// requestScope 在引擎就绪前直接放行
func (b *Builder) requestScope(c *gin.Context) {
	engine := b.services.Load()
	if engine == nil {
		c.Next()
		return
	}
	serveScoped(c, engine, b.logger)
}

// UsePort 设置端口，0 表示随机端口
func (b *Builder) UsePort(port int) *Builder {
	b.port = port
	return b
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// AddControllers 注册控制器
// 传入参数可以是：
//  1. 控制器的构造函数 (例如 NewUserController)，参数从容器解析
//  2. 控制器实例指针 (例如 &UserController{})，带 di 标签时按字段注入创建
//  3. 控制器的 reflect.Type
//
// 控制器以单例注册，Host 启动时解析并挂载路由
func (b *Builder) AddControllers(controllers ...any) *Builder {
	b.controllers = append(b.controllers, controllers...)
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.GET(path, handlers...)
	return b
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.POST(path, handlers...)
	return b
}

// Put 注册 PUT 路由
func (b *Builder) Put(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.PUT(path, handlers...)
	return b
}

// Delete 注册 DELETE 路由
func (b *Builder) Delete(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.DELETE(path, handlers...)
	return b
}

// Patch 注册 PATCH 路由
func (b *Builder) Patch(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.PATCH(path, handlers...)
	return b
}

// Any 注册任意方法路由
func (b *Builder) Any(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.Any(path, handlers...)
	return b
}

// Group 创建路由组
func (b *Builder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

// Static 服务静态文件
func (b *Builder) Static(relativePath, root string) *Builder {
	b.engine.Static(relativePath, root)
	return b
}

// StaticFS 服务静态文件系统
func (b *Builder) StaticFS(relativePath string, fs http.FileSystem) *Builder {
	b.engine.StaticFS(relativePath, fs)
	return b
}

// NoRoute 处理 404
func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// NoMethod 处理 405
func (b *Builder) NoMethod(handlers ...gin.HandlerFunc) *Builder {
	b.engine.HandleMethodNotAllowed = true
	b.engine.NoMethod(handlers...)
	return b
}

// SetMode 设置 Gin 模式
func (b *Builder) SetMode(mode string) *Builder {
	gin.SetMode(mode)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// RegisterServices 把控制器注册到服务集合，必须在集合 Build 之前调用。
// 同一类型重复注册时保留第一次注册。
func (b *Builder) RegisterServices(services *di.ServiceCollection) error {
	seen := make(map[reflect.Type]struct{}, len(b.registeredTypes))
	for _, t := range b.registeredTypes {
		seen[t] = struct{}{}
	}

	for _, item := range b.controllers {
		d, err := describeController(item)
		if err != nil {
			return err
		}
		if _, err := services.TryAdd(d); err != nil {
			return fmt.Errorf("web: register controller %v: %w", d.ServiceType, err)
		}
		if _, ok := seen[d.ServiceType]; ok {
			b.logger.Warn("Controller registered more than once",
				logging.Field{Key: "controller", Value: d.ServiceType.String()})
			continue
		}
		seen[d.ServiceType] = struct{}{}
		b.registeredTypes = append(b.registeredTypes, d.ServiceType)
	}
	b.controllers = b.controllers[:0]
	return nil
}

// describeController 推断控制器的服务类型与实现来源
func describeController(item any) (*di.ServiceDescriptor, error) {
	d := &di.ServiceDescriptor{Lifetime: di.Singleton}
	switch v := item.(type) {
	case nil:
		return nil, fmt.Errorf("web: controller is nil")
	case reflect.Type:
		d.ServiceType = v
		d.ImplementationType = v
		return d, nil
	}

	t := reflect.TypeOf(item)
	switch {
	case t.Kind() == reflect.Func:
		if t.NumOut() == 0 {
			return nil, fmt.Errorf("web: controller constructor %v returns nothing", t)
		}
		d.ServiceType = t.Out(0)
		d.Constructor = item
	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct && hasInjectTags(t.Elem()):
		d.ServiceType = t
		d.ImplementationType = t
	default:
		d.ServiceType = t
		d.Instance = item
	}
	return d, nil
}

func hasInjectTags(structType reflect.Type) bool {
	for i := 0; i < structType.NumField(); i++ {
		if _, ok := structType.Field(i).Tag.Lookup("di"); ok {
			return true
		}
	}
	return false
}

// Build 构建 Web 主机
// engine 必须是应用的根引擎，用于解析控制器与创建请求作用域
func (b *Builder) Build(engine *di.Engine) *Host {
	b.services.Store(engine)
	return &Host{
		port:            b.port,
		router:          b.engine,
		services:        engine,
		controllerTypes: b.registeredTypes,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", b.port),
			Handler: b.engine,
		},
		logger: b.logger,
	}
}
