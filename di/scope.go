package di

import (
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gocrud/svchost/logging"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Disposable 由需要在作用域结束时释放资源的服务实现。
// 实现 io.Closer 的服务同样会被释放。
type Disposable interface {
	Dispose() error
}

// Scope 是一个工作单元（例如一次请求）的实例缓存和释放清单。
// 根作用域属于 Engine，用来存放单例。
type Scope struct {
	id     uuid.UUID
	engine *Engine
	root   *Scope
	logger logging.Logger

	mu          sync.Mutex
	resolved    map[CacheKey]any
	disposables []any
	disposed    atomic.Bool

	// origin 非 nil 时本对象是交给工厂的视图，状态都在 origin 上。
	// 工厂执行期间 active 指向正在进行的解析链，嵌套解析沿用它持有的锁。
	origin *Scope
	active atomic.Pointer[resolveChain]
}

func newScope(engine *Engine, root *Scope) *Scope {
	s := &Scope{
		id:       uuid.New(),
		engine:   engine,
		root:     root,
		resolved: make(map[CacheKey]any),
	}
	if s.root == nil {
		s.root = s
	}
	s.logger = engine.logger.WithFields(logging.Field{Key: "scope", Value: s.id.String()})
	return s
}

// factoryView 返回绑定 chain 的视图，工厂返回后调用 release 解除绑定。
func (s *Scope) factoryView(chain *resolveChain) (view *Scope, release func()) {
	view = &Scope{
		id:     s.id,
		engine: s.engine,
		root:   s.root,
		logger: s.logger,
		origin: s,
	}
	view.active.Store(chain)
	return view, func() { view.active.Store(nil) }
}

// base 返回真正持有状态的作用域。
func (s *Scope) base() *Scope {
	if s.origin != nil {
		return s.origin
	}
	return s
}

// chain 返回视图上仍然有效的解析链，没有时返回 nil。
func (s *Scope) chain() *resolveChain {
	if s.origin == nil {
		return nil
	}
	return s.active.Load()
}

// ID 返回作用域的唯一标识。
func (s *Scope) ID() uuid.UUID { return s.id }

// Root 返回根作用域。根作用域的 Root 是它自己。
func (s *Scope) Root() *Scope { return s.root }

// Engine 返回创建该作用域的引擎。
func (s *Scope) Engine() *Engine { return s.engine }

// IsRoot 判断是否为根作用域。
func (s *Scope) IsRoot() bool { return s.root == s.base() }

// IsDisposed 判断作用域是否已经释放。
func (s *Scope) IsDisposed() bool { return s.base().disposed.Load() }

// GetService 在当前作用域中解析 typ 的最后一个注册。
func (s *Scope) GetService(typ reflect.Type) (any, error) {
	return s.engine.getService(serviceKey{Type: typ}, s)
}

// GetNamedService 在当前作用域中解析具名服务。
func (s *Scope) GetNamedService(typ reflect.Type, name string) (any, error) {
	return s.engine.getService(serviceKey{Type: typ, Name: name}, s)
}

// ResolveCallSite 在当前作用域中求值一个调用点。
func (s *Scope) ResolveCallSite(cs CallSite) (any, error) {
	if s.IsDisposed() {
		return nil, ErrScopeDisposed
	}
	return s.engine.resolver.resolve(cs, s.base(), s.chain())
}

// CreateScope 创建一个新的子作用域，等价于 s.Engine().CreateScope()。
func (s *Scope) CreateScope() *Scope {
	return s.engine.CreateScope()
}

// captureDisposable 把可释放的实例登记到作用域。
// chain 已经持有本作用域的锁时不再加锁；作用域已释放时立即释放实例并返回 ErrScopeDisposed。
func (s *Scope) captureDisposable(v any, chain *resolveChain) error {
	if !isDisposable(v) {
		return nil
	}
	switch v.(type) {
	case *Scope, *Engine:
		return nil
	}

	if chain == nil || !chain.holds(s) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	if s.disposed.Load() {
		if err := disposeInstance(v); err != nil {
			s.logger.Error("dispose instance captured after scope disposal failed",
				logging.Field{Key: "type", Value: fmt.Sprintf("%T", v)},
				logging.Field{Key: "error", Value: err})
		}
		return ErrScopeDisposed
	}
	if s.captured(v) {
		return nil
	}
	s.disposables = append(s.disposables, v)
	return nil
}

// Dispose 按捕获的逆序释放所有实例，只执行一次。
// 释放错误会被合并返回，单个失败不会阻止其余实例的释放。
func (s *Scope) Dispose() error {
	if s.origin != nil {
		return s.origin.Dispose()
	}
	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return nil
	}
	s.disposed.Store(true)
	disposables := s.disposables
	s.disposables = nil
	s.resolved = nil
	s.mu.Unlock()

	var errs error
	for i := len(disposables) - 1; i >= 0; i-- {
		if err := disposeInstance(disposables[i]); err != nil {
			s.logger.Error("dispose instance failed",
				logging.Field{Key: "type", Value: fmt.Sprintf("%T", disposables[i])},
				logging.Field{Key: "error", Value: err})
			errs = multierr.Append(errs, err)
		}
	}

	s.logger.Debug("scope disposed", logging.Field{Key: "disposables", Value: len(disposables)})
	return errs
}

// captured 判断同一指针是否已经登记过，值类型的实例各自登记。
func (s *Scope) captured(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return false
	}
	for _, d := range s.disposables {
		dv := reflect.ValueOf(d)
		if dv.Kind() == reflect.Pointer && dv.Type() == rv.Type() && dv.Pointer() == rv.Pointer() {
			return true
		}
	}
	return false
}

func isDisposable(v any) bool {
	switch v.(type) {
	case Disposable, io.Closer:
		return true
	default:
		return false
	}
}

func disposeInstance(v any) error {
	switch d := v.(type) {
	case Disposable:
		return d.Dispose()
	case io.Closer:
		return d.Close()
	default:
		return nil
	}
}
