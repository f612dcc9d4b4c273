package di

import (
	"fmt"
	"strings"
)

// resolveChain 记录一次解析过程的调用路径、正在构造的缓存键以及已经持有的作用域锁。
// 每次顶层解析创建一个新的 chain，它不会在 goroutine 之间共享。
type resolveChain struct {
	path    []CallSite
	pending []pendingKey
	held    []*Scope
}

type pendingKey struct {
	scope *Scope
	key   CacheKey
}

// enter 把调用点压入路径；如果它已经在路径上，说明调用点树中存在环。
func (c *resolveChain) enter(cs CallSite) error {
	for _, p := range c.path {
		if p == cs {
			return fmt.Errorf("%w: %s", ErrCircularDependency, c.describe(label(cs)))
		}
	}
	c.path = append(c.path, cs)
	return nil
}

func (c *resolveChain) leave() {
	c.path = c.path[:len(c.path)-1]
}

// begin 标记 key 正在 scope 中构造。同一个 key 在构造期间被再次请求时返回环错误，
// 而不是在作用域锁上死锁或重复构造。
func (c *resolveChain) begin(scope *Scope, key CacheKey) error {
	for _, p := range c.pending {
		if p.scope == scope && p.key == key {
			return fmt.Errorf("%w: %s", ErrCircularDependency, c.describe(key.String()))
		}
	}
	c.pending = append(c.pending, pendingKey{scope: scope, key: key})
	return nil
}

func (c *resolveChain) end() {
	c.pending = c.pending[:len(c.pending)-1]
}

func (c *resolveChain) holds(scope *Scope) bool {
	for _, s := range c.held {
		if s == scope {
			return true
		}
	}
	return false
}

// lock 获取作用域锁。当前解析已经持有该锁时不重复获取，
// 这样嵌套的 Scoped 解析在同一个作用域上可以继续进行。
func (c *resolveChain) lock(scope *Scope) (unlock func()) {
	if c.holds(scope) {
		return func() {}
	}
	scope.mu.Lock()
	c.held = append(c.held, scope)
	return func() {
		c.held = c.held[:len(c.held)-1]
		scope.mu.Unlock()
	}
}

func (c *resolveChain) describe(last string) string {
	parts := make([]string, 0, len(c.path)+1)
	for i, p := range c.path {
		if i > 0 && inner(c.path[i-1]) == p {
			continue
		}
		parts = append(parts, label(p))
	}
	parts = append(parts, last)
	return strings.Join(parts, " -> ")
}

// label 返回路径上显示的名称：缓存调用点使用缓存键，其余使用服务类型。
func label(cs CallSite) string {
	switch c := cs.(type) {
	case *ScopedCallSite:
		return c.Key.String()
	case *SingletonCallSite:
		return c.Key.String()
	case *TransientCallSite:
		return label(c.Inner) + "/transient"
	default:
		return cs.ServiceType().String()
	}
}

// inner 返回生命周期调用点包装的内部调用点。
func inner(cs CallSite) CallSite {
	switch c := cs.(type) {
	case *ScopedCallSite:
		return c.Inner
	case *SingletonCallSite:
		return c.Inner
	case *TransientCallSite:
		return c.Inner
	default:
		return nil
	}
}
