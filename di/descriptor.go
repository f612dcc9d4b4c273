package di

import (
	"fmt"
	"reflect"
)

// ServiceDescriptor 描述一个服务注册。
// Instance、Factory、Constructor、ImplementationType 中只能设置一个。
type ServiceDescriptor struct {
	ServiceType reflect.Type
	Name        string
	Lifetime    Lifetime

	Instance           any
	Factory            FactoryFunc
	Constructor        any          // func(deps...) T 或 func(deps...) (T, error)
	ImplementationType reflect.Type // 结构体注入
}

func (d *ServiceDescriptor) key() serviceKey {
	return serviceKey{Type: d.ServiceType, Name: d.Name}
}

func (d *ServiceDescriptor) String() string {
	return fmt.Sprintf("%v/%s", d.key(), d.Lifetime)
}

func (d *ServiceDescriptor) validate() error {
	if d.ServiceType == nil {
		return fmt.Errorf("%w: service type is nil", ErrInvalidRegistration)
	}

	sources := 0
	if d.Instance != nil {
		sources++
	}
	if d.Factory != nil {
		sources++
	}
	if d.Constructor != nil {
		sources++
	}
	if d.ImplementationType != nil {
		sources++
	}
	if sources != 1 {
		return fmt.Errorf("%w: %v must have exactly one implementation source, got %d", ErrInvalidRegistration, d.key(), sources)
	}

	switch {
	case d.Instance != nil:
		if d.Lifetime != Singleton {
			return fmt.Errorf("%w: instance of %v must be registered as singleton", ErrInvalidRegistration, d.key())
		}
		if !reflect.TypeOf(d.Instance).AssignableTo(d.ServiceType) {
			return fmt.Errorf("%w: instance %T is not assignable to %v", ErrInvalidRegistration, d.Instance, d.ServiceType)
		}
	case d.Constructor != nil:
		return checkConstructor(reflect.TypeOf(d.Constructor), d.ServiceType)
	case d.ImplementationType != nil:
		structType, _ := structOf(d.ImplementationType)
		if structType.Kind() != reflect.Struct {
			return fmt.Errorf("%w: implementation %v of %v is not a struct", ErrInvalidRegistration, d.ImplementationType, d.ServiceType)
		}
		if !d.ImplementationType.AssignableTo(d.ServiceType) {
			return fmt.Errorf("%w: %v does not implement %v", ErrInvalidRegistration, d.ImplementationType, d.ServiceType)
		}
	}
	return nil
}

// Option 配置服务注册。
type Option func(*ServiceDescriptor)

// WithName 设置服务的名称，用于命名注入。
func WithName(name string) Option {
	return func(d *ServiceDescriptor) {
		d.Name = name
	}
}

// WithLifetime 设置服务的生命周期。
func WithLifetime(l Lifetime) Option {
	return func(d *ServiceDescriptor) {
		d.Lifetime = l
	}
}

// WithSingleton 将生命周期设置为 Singleton（默认）。
func WithSingleton() Option { return WithLifetime(Singleton) }

// WithScoped 将生命周期设置为 Scoped。
func WithScoped() Option { return WithLifetime(Scoped) }

// WithTransient 将生命周期设置为 Transient。
func WithTransient() Option { return WithLifetime(Transient) }

// WithValue 将已经创建好的实例注册为单例，按原样使用。
func WithValue(v any) Option {
	return func(d *ServiceDescriptor) {
		d.clearSource()
		d.Instance = v
		d.Lifetime = Singleton
	}
}

// WithConstructor 使用构造函数创建实例，参数会被注入。
func WithConstructor(fn any) Option {
	return func(d *ServiceDescriptor) {
		d.clearSource()
		d.Constructor = fn
	}
}

// Use 指定接口的实现类型（结构体注入）。
func Use[T any]() Option {
	return func(d *ServiceDescriptor) {
		d.clearSource()
		d.ImplementationType = TypeOf[T]()
	}
}

func (d *ServiceDescriptor) clearSource() {
	d.Instance = nil
	d.Factory = nil
	d.Constructor = nil
	d.ImplementationType = nil
}

// describe 根据 impl 推断实现来源：
//   - nil            -> 结构体注入，实现类型为服务类型本身
//   - reflect.Type   -> 结构体注入
//   - func           -> 构造函数
//   - 其它值          -> 实例
func describe(serviceType reflect.Type, lifetime Lifetime, impl any) *ServiceDescriptor {
	d := &ServiceDescriptor{ServiceType: serviceType, Lifetime: lifetime}
	switch v := impl.(type) {
	case nil:
		d.ImplementationType = serviceType
	case reflect.Type:
		d.ImplementationType = v
	default:
		if reflect.TypeOf(impl).Kind() == reflect.Func {
			d.Constructor = impl
		} else {
			d.Instance = impl
		}
	}
	return d
}
