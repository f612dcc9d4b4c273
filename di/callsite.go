package di

import "reflect"

// CallSiteKind 是调用点的判别标签。
type CallSiteKind int

const (
	KindConstant CallSiteKind = iota
	KindConstructor
	KindCreateInstance
	KindFactory
	KindTransient
	KindScoped
	KindSingleton
	KindSelfReference
	KindScopeFactory
	KindEnumerable
)

func (k CallSiteKind) String() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindConstructor:
		return "Constructor"
	case KindCreateInstance:
		return "CreateInstance"
	case KindFactory:
		return "Factory"
	case KindTransient:
		return "Transient"
	case KindScoped:
		return "Scoped"
	case KindSingleton:
		return "Singleton"
	case KindSelfReference:
		return "SelfReference"
	case KindScopeFactory:
		return "ScopeFactory"
	case KindEnumerable:
		return "Enumerable"
	default:
		return "Unknown"
	}
}

// CallSite 描述如何构造一个服务值。
// 调用点构造后不可变，可在多个 goroutine 之间共享。
// 接口是封闭的：只有本包中的指针类型实现它。
type CallSite interface {
	Kind() CallSiteKind
	ServiceType() reflect.Type
	callSite()
}

// Activator 是按类型预先生成的构造闭包，args 与参数调用点一一对应。
// 构造失败时返回 *InvocationError 包装的原始错误。
type Activator func(args []any) (any, error)

// FactoryFunc 是工厂调用点的回调，接收当前作用域。
type FactoryFunc func(scope *Scope) (any, error)

// ConstantCallSite 返回预先计算好的值。
type ConstantCallSite struct {
	Type  reflect.Type
	Value any
}

// ConstructorCallSite 先按顺序解析参数，再调用 Activator。
type ConstructorCallSite struct {
	Type               reflect.Type
	ImplementationType reflect.Type
	Parameters         []CallSite
	Activator          Activator
}

// CreateInstanceCallSite 无参构造。
type CreateInstanceCallSite struct {
	Type               reflect.Type
	ImplementationType reflect.Type
	New                func() (any, error)
}

// FactoryCallSite 调用用户工厂，结果原样返回。
type FactoryCallSite struct {
	Type    reflect.Type
	Factory FactoryFunc
}

// TransientCallSite 每次都重新构造内部调用点，并把结果交给作用域释放。
type TransientCallSite struct {
	Inner CallSite
}

// ScopedCallSite 在所属作用域内缓存内部调用点的结果。
type ScopedCallSite struct {
	Inner CallSite
	Key   CacheKey
}

// SingletonCallSite 只在根作用域中缓存。
type SingletonCallSite struct {
	Inner CallSite
	Key   CacheKey
}

// SelfReferenceCallSite 解析为当前作用域本身。
type SelfReferenceCallSite struct {
	Type reflect.Type
}

// ScopeFactoryCallSite 解析为能够创建新作用域的引擎。
type ScopeFactoryCallSite struct {
	Type reflect.Type
}

// EnumerableCallSite 按注册顺序解析所有实现，Collect 把结果组装成 []ItemType。
type EnumerableCallSite struct {
	ItemType reflect.Type
	Items    []CallSite
	Collect  func(items []any) any
}

func (c *ConstantCallSite) Kind() CallSiteKind       { return KindConstant }
func (c *ConstructorCallSite) Kind() CallSiteKind    { return KindConstructor }
func (c *CreateInstanceCallSite) Kind() CallSiteKind { return KindCreateInstance }
func (c *FactoryCallSite) Kind() CallSiteKind        { return KindFactory }
func (c *TransientCallSite) Kind() CallSiteKind      { return KindTransient }
func (c *ScopedCallSite) Kind() CallSiteKind         { return KindScoped }
func (c *SingletonCallSite) Kind() CallSiteKind      { return KindSingleton }
func (c *SelfReferenceCallSite) Kind() CallSiteKind  { return KindSelfReference }
func (c *ScopeFactoryCallSite) Kind() CallSiteKind   { return KindScopeFactory }
func (c *EnumerableCallSite) Kind() CallSiteKind     { return KindEnumerable }

func (c *ConstantCallSite) ServiceType() reflect.Type       { return c.Type }
func (c *ConstructorCallSite) ServiceType() reflect.Type    { return c.Type }
func (c *CreateInstanceCallSite) ServiceType() reflect.Type { return c.Type }
func (c *FactoryCallSite) ServiceType() reflect.Type        { return c.Type }
func (c *TransientCallSite) ServiceType() reflect.Type      { return c.Inner.ServiceType() }
func (c *ScopedCallSite) ServiceType() reflect.Type         { return c.Inner.ServiceType() }
func (c *SingletonCallSite) ServiceType() reflect.Type      { return c.Inner.ServiceType() }
func (c *SelfReferenceCallSite) ServiceType() reflect.Type  { return c.Type }
func (c *ScopeFactoryCallSite) ServiceType() reflect.Type   { return c.Type }
func (c *EnumerableCallSite) ServiceType() reflect.Type     { return reflect.SliceOf(c.ItemType) }

func (*ConstantCallSite) callSite()       {}
func (*ConstructorCallSite) callSite()    {}
func (*CreateInstanceCallSite) callSite() {}
func (*FactoryCallSite) callSite()        {}
func (*TransientCallSite) callSite()      {}
func (*ScopedCallSite) callSite()         {}
func (*SingletonCallSite) callSite()      {}
func (*SelfReferenceCallSite) callSite()  {}
func (*ScopeFactoryCallSite) callSite()   {}
func (*EnumerableCallSite) callSite()     {}
