package di

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gocrud/svchost/logging"
	"go.uber.org/multierr"
)

// Engine 持有根作用域、调用点工厂和解析器。
// 根作用域是该引擎的单例存储，不存在任何全局状态。
type Engine struct {
	factory  *callSiteFactory
	resolver *resolver
	root     *Scope
	options  BuildOptions
	logger   logging.Logger

	// 已实现的调用点缓存，避免每次解析都进入工厂锁
	accessors  sync.Map // serviceKey -> CallSite
	rootChecks sync.Map // CallSite -> error
}

func newEngine(descriptors []*ServiceDescriptor, options BuildOptions) *Engine {
	e := &Engine{
		factory:  newCallSiteFactory(descriptors),
		resolver: &resolver{},
		options:  options,
		logger:   options.Logger.WithCategory("di"),
	}
	e.root = newScope(e, nil)
	e.logger.Debug("engine built", logging.Field{Key: "services", Value: len(descriptors)})
	return e
}

// Root 返回根作用域。
func (e *Engine) Root() *Scope { return e.root }

// CreateScope 创建一个新的子作用域。调用方负责调用 Dispose。
func (e *Engine) CreateScope() *Scope {
	s := newScope(e, e.root)
	s.logger.Debug("scope created")
	return s
}

// GetService 从根作用域解析服务。
func (e *Engine) GetService(typ reflect.Type) (any, error) {
	return e.getService(serviceKey{Type: typ}, e.root)
}

// GetNamedService 从根作用域解析具名服务。
func (e *Engine) GetNamedService(typ reflect.Type, name string) (any, error) {
	return e.getService(serviceKey{Type: typ, Name: name}, e.root)
}

// CallSite 返回服务的调用点，主要用于诊断。
func (e *Engine) CallSite(typ reflect.Type, name string) (CallSite, error) {
	return e.callSite(serviceKey{Type: typ, Name: name})
}

// Dispose 释放根作用域，之后所有解析都会返回 ErrScopeDisposed。
func (e *Engine) Dispose() error {
	return e.root.Dispose()
}

func (e *Engine) callSite(key serviceKey) (CallSite, error) {
	if cs, ok := e.accessors.Load(key); ok {
		return cs.(CallSite), nil
	}
	cs, err := e.factory.get(key)
	if err != nil {
		return nil, err
	}
	actual, _ := e.accessors.LoadOrStore(key, cs)
	return actual.(CallSite), nil
}

func (e *Engine) getService(key serviceKey, scope *Scope) (any, error) {
	if scope.IsDisposed() || e.root.IsDisposed() {
		return nil, ErrScopeDisposed
	}

	cs, err := e.callSite(key)
	if err != nil {
		return nil, err
	}

	if e.options.ValidateScopes && scope.IsRoot() {
		if err := e.checkRoot(cs); err != nil {
			return nil, err
		}
	}

	return e.resolver.resolve(cs, scope.base(), scope.chain())
}

// checkRoot 检查从根作用域解析 cs 是否会构造 Scoped 服务。
func (e *Engine) checkRoot(cs CallSite) error {
	if v, ok := e.rootChecks.Load(cs); ok {
		if v == nil {
			return nil
		}
		return v.(error)
	}

	var err error
	if scoped := findScoped(cs); scoped != nil {
		err = fmt.Errorf("%w: %v requires %v", ErrScopedFromRoot, cs.ServiceType(), scoped.Key)
	}
	e.rootChecks.Store(cs, err)
	return err
}

// validate 构建所有注册的调用点，合并返回所有错误。
func (e *Engine) validate() error {
	var errs error
	for _, d := range e.factory.descriptors {
		cs, err := e.factory.forDescriptor(d)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validating %v: %w", d, err))
			continue
		}
		if !e.options.ValidateScopes {
			continue
		}
		if single, ok := cs.(*SingletonCallSite); ok {
			if scoped := findScoped(single.Inner); scoped != nil {
				errs = multierr.Append(errs, fmt.Errorf("%w: singleton %v depends on scoped %v", ErrScopedFromRoot, d, scoped.Key))
			}
		}
	}
	return errs
}

// findScoped 返回调用点树中可达的第一个 Scoped 调用点。
func findScoped(cs CallSite) *ScopedCallSite {
	switch c := cs.(type) {
	case *ScopedCallSite:
		return c
	case *SingletonCallSite:
		return findScoped(c.Inner)
	case *TransientCallSite:
		return findScoped(c.Inner)
	case *ConstructorCallSite:
		for _, p := range c.Parameters {
			if s := findScoped(p); s != nil {
				return s
			}
		}
	case *EnumerableCallSite:
		for _, item := range c.Items {
			if s := findScoped(item); s != nil {
				return s
			}
		}
	}
	return nil
}
