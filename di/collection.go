package di

import (
	"fmt"
	"reflect"
	"sync"
)

// ServiceCollection 收集服务注册，Build 之后生成 Engine。
// 同一个键可以注册多次：单个解析返回最后一个，[]T 按注册顺序返回全部。
type ServiceCollection struct {
	mu          sync.Mutex
	descriptors []*ServiceDescriptor
	built       bool
}

// NewServiceCollection 创建空的服务集合。
func NewServiceCollection() *ServiceCollection {
	return &ServiceCollection{}
}

// Add 添加一个服务描述。
func (c *ServiceCollection) Add(d *ServiceDescriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.built {
		return ErrAlreadyBuilt
	}
	c.descriptors = append(c.descriptors, d)
	return nil
}

// TryAdd 仅在键尚未注册时添加，返回是否添加。
func (c *ServiceCollection) TryAdd(d *ServiceDescriptor) (bool, error) {
	if c.Contains(d.ServiceType, d.Name) {
		return false, nil
	}
	if err := c.Add(d); err != nil {
		return false, err
	}
	return true, nil
}

// Contains 判断键是否已经注册。
func (c *ServiceCollection) Contains(typ reflect.Type, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.descriptors {
		if d.ServiceType == typ && d.Name == name {
			return true
		}
	}
	return false
}

// Descriptors 返回注册的副本，按注册顺序排列。
func (c *ServiceCollection) Descriptors() []*ServiceDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ServiceDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Len 返回注册数量。
func (c *ServiceCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.descriptors)
}

// Build 冻结集合并创建引擎。集合只能 Build 一次。
func (c *ServiceCollection) Build(opts ...BuildOption) (*Engine, error) {
	c.mu.Lock()
	if c.built {
		c.mu.Unlock()
		return nil, ErrAlreadyBuilt
	}
	c.built = true
	descriptors := make([]*ServiceDescriptor, len(c.descriptors))
	copy(descriptors, c.descriptors)
	c.mu.Unlock()

	options := defaultBuildOptions()
	for _, opt := range opts {
		opt(&options)
	}

	engine := newEngine(descriptors, options)
	if options.ValidateOnBuild {
		if err := engine.validate(); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// mustAdd 供泛型注册函数使用：注册错误属于编程错误，直接 panic。
func (c *ServiceCollection) mustAdd(d *ServiceDescriptor, opts []Option) {
	for _, opt := range opts {
		opt(d)
	}
	if err := c.Add(d); err != nil {
		panic(fmt.Sprintf("di: failed to register %v: %v", d.ServiceType, err))
	}
}

// Register 以结构体注入方式注册 T，默认单例。
// 如果 T 是接口，需要使用 di.Use[Impl]() 指定实现。
func Register[T any](c *ServiceCollection, opts ...Option) {
	c.mustAdd(describe(TypeOf[T](), Singleton, nil), opts)
}

// AddSingleton 注册单例。impl 可以是构造函数、实例、reflect.Type 或 nil（T 本身做结构体注入）。
func AddSingleton[T any](c *ServiceCollection, impl any, opts ...Option) {
	c.mustAdd(describe(TypeOf[T](), Singleton, impl), opts)
}

// AddScoped 注册作用域服务，impl 同 AddSingleton。
func AddScoped[T any](c *ServiceCollection, impl any, opts ...Option) {
	c.mustAdd(describe(TypeOf[T](), Scoped, impl), opts)
}

// AddTransient 注册瞬态服务，impl 同 AddSingleton。
func AddTransient[T any](c *ServiceCollection, impl any, opts ...Option) {
	c.mustAdd(describe(TypeOf[T](), Transient, impl), opts)
}

// AddInstance 注册已经存在的实例。实例不会被容器释放。
func AddInstance[T any](c *ServiceCollection, v T, opts ...Option) {
	c.mustAdd(&ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Singleton, Instance: v}, opts)
}

// AddFactory 注册工厂回调，工厂接收当前作用域。
func AddFactory[T any](c *ServiceCollection, lifetime Lifetime, fn func(*Scope) (T, error), opts ...Option) {
	c.mustAdd(&ServiceDescriptor{
		ServiceType: TypeOf[T](),
		Lifetime:    lifetime,
		Factory: func(s *Scope) (any, error) {
			return fn(s)
		},
	}, opts)
}
