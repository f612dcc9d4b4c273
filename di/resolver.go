package di

import "fmt"

// resolver 把调用点树求值为实例。
// 它本身没有状态，缓存和释放都委托给目标作用域。
type resolver struct{}

// resolve 从 scope 出发求值 cs。chain 为 nil 时开始新的解析链，
// 否则在工厂内部继续外层的解析链。
func (r *resolver) resolve(cs CallSite, scope *Scope, chain *resolveChain) (any, error) {
	if chain == nil {
		chain = &resolveChain{}
	}
	return r.visit(cs, scope, chain)
}

func (r *resolver) visit(cs CallSite, scope *Scope, chain *resolveChain) (any, error) {
	if err := chain.enter(cs); err != nil {
		return nil, err
	}
	defer chain.leave()

	switch c := cs.(type) {
	case *TransientCallSite:
		return r.visitTransient(c, scope, chain)
	case *ConstructorCallSite:
		return r.visitConstructor(c, scope, chain)
	case *CreateInstanceCallSite:
		v, err := c.New()
		if err != nil {
			return nil, unwrapInvocation(err)
		}
		return v, nil
	case *SingletonCallSite:
		// 单例总是在根作用域上缓存和加锁
		return r.visitCached(c.Key, c.Inner, scope.root, chain)
	case *ScopedCallSite:
		return r.visitCached(c.Key, c.Inner, scope, chain)
	case *ConstantCallSite:
		return c.Value, nil
	case *SelfReferenceCallSite:
		return scope, nil
	case *ScopeFactoryCallSite:
		return scope.engine, nil
	case *EnumerableCallSite:
		return r.visitEnumerable(c, scope, chain)
	case *FactoryCallSite:
		return r.visitFactory(c, scope, chain)
	default:
		panic(fmt.Sprintf("di: unsupported call site %T", cs))
	}
}

func (r *resolver) visitTransient(c *TransientCallSite, scope *Scope, chain *resolveChain) (any, error) {
	v, err := r.visit(c.Inner, scope, chain)
	if err != nil {
		return nil, err
	}
	if err := scope.captureDisposable(v, chain); err != nil {
		return nil, err
	}
	return v, nil
}

// visitFactory 把绑定当前解析链的作用域视图交给工厂，
// 工厂通过它解析的服务沿用已经持有的作用域锁。
func (r *resolver) visitFactory(c *FactoryCallSite, scope *Scope, chain *resolveChain) (any, error) {
	view, release := scope.factoryView(chain)
	defer release()

	v, err := c.Factory(view)
	if err != nil {
		return nil, unwrapInvocation(err)
	}
	return v, nil
}

func (r *resolver) visitConstructor(c *ConstructorCallSite, scope *Scope, chain *resolveChain) (any, error) {
	args := make([]any, len(c.Parameters))
	for i, p := range c.Parameters {
		v, err := r.visit(p, scope, chain)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	v, err := c.Activator(args)
	if err != nil {
		return nil, unwrapInvocation(err)
	}
	return v, nil
}

// visitCached 在 target 的锁内查找或构造 key 对应的实例。
// 锁一直持有到内部调用点（包括嵌套的 Scoped/Singleton）全部构造完成。
func (r *resolver) visitCached(key CacheKey, inner CallSite, target *Scope, chain *resolveChain) (any, error) {
	unlock := chain.lock(target)
	defer unlock()

	if target.disposed.Load() {
		return nil, ErrScopeDisposed
	}
	if v, ok := target.resolved[key]; ok {
		return v, nil
	}

	if err := chain.begin(target, key); err != nil {
		return nil, err
	}
	defer chain.end()

	v, err := r.visit(inner, target, chain)
	if err != nil {
		return nil, err
	}
	if err := target.captureDisposable(v, chain); err != nil {
		return nil, err
	}
	target.resolved[key] = v
	return v, nil
}

func (r *resolver) visitEnumerable(c *EnumerableCallSite, scope *Scope, chain *resolveChain) (any, error) {
	items := make([]any, len(c.Items))
	for i, item := range c.Items {
		v, err := r.visit(item, scope, chain)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	if c.Collect == nil {
		return items, nil
	}
	return c.Collect(items), nil
}
