package di

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var (
	scopeType        = reflect.TypeOf((*Scope)(nil))
	providerType     = TypeOf[ServiceProvider]()
	scopeFactoryType = TypeOf[ScopeFactory]()
)

// slotKey 区分同一个键的多个注册，最后一个注册为 slot 0。
type slotKey struct {
	serviceKey
	Slot int
}

func (k slotKey) String() string {
	if k.Slot == 0 {
		return k.serviceKey.String()
	}
	return fmt.Sprintf("%v[%d]", k.serviceKey, k.Slot)
}

// callSiteFactory 根据注册构建调用点并缓存。
// 反射只在这里发生，生成的调用点树不可变，可被并发解析。
type callSiteFactory struct {
	descriptors []*ServiceDescriptor
	index       map[serviceKey][]*ServiceDescriptor
	slots       map[*ServiceDescriptor]int

	mu    sync.Mutex
	cache map[slotKey]CallSite
}

func newCallSiteFactory(descriptors []*ServiceDescriptor) *callSiteFactory {
	f := &callSiteFactory{
		descriptors: descriptors,
		index:       make(map[serviceKey][]*ServiceDescriptor),
		slots:       make(map[*ServiceDescriptor]int, len(descriptors)),
		cache:       make(map[slotKey]CallSite),
	}
	for _, d := range descriptors {
		f.index[d.key()] = append(f.index[d.key()], d)
	}
	for _, descs := range f.index {
		for i, d := range descs {
			f.slots[d] = len(descs) - 1 - i
		}
	}
	return f
}

// get 返回键对应的调用点，未注册时返回 ErrServiceNotFound。
func (f *callSiteFactory) get(key serviceKey) (CallSite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.create(key, &buildChain{})
}

// forDescriptor 返回某个具体注册的调用点。
func (f *callSiteFactory) forDescriptor(d *ServiceDescriptor) (CallSite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createExact(d, f.slots[d], &buildChain{})
}

func (f *callSiteFactory) create(key serviceKey, chain *buildChain) (CallSite, error) {
	if descs := f.index[key]; len(descs) > 0 {
		return f.createExact(descs[len(descs)-1], 0, chain)
	}
	if cs, ok := specialCallSite(key); ok {
		return cs, nil
	}
	if isEnumerable(key.Type) {
		return f.createEnumerable(key, chain)
	}
	return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, chain.describe(key.String()))
}

// resolvable 判断键能否构建出调用点（不检查传递依赖）。
func (f *callSiteFactory) resolvable(key serviceKey) bool {
	if len(f.index[key]) > 0 {
		return true
	}
	if _, ok := specialCallSite(key); ok {
		return true
	}
	return isEnumerable(key.Type)
}

func specialCallSite(key serviceKey) (CallSite, bool) {
	if key.Name != "" {
		return nil, false
	}
	switch key.Type {
	case scopeType, providerType:
		return &SelfReferenceCallSite{Type: key.Type}, true
	case scopeFactoryType:
		return &ScopeFactoryCallSite{Type: key.Type}, true
	}
	return nil, false
}

func isEnumerable(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Name() == ""
}

func (f *callSiteFactory) createEnumerable(key serviceKey, chain *buildChain) (CallSite, error) {
	sk := slotKey{serviceKey: key}
	if cs, ok := f.cache[sk]; ok {
		return cs, nil
	}

	itemType := key.Type.Elem()
	descs := f.index[serviceKey{Type: itemType, Name: key.Name}]
	items := make([]CallSite, len(descs))
	for i, d := range descs {
		cs, err := f.createExact(d, len(descs)-1-i, chain)
		if err != nil {
			return nil, err
		}
		items[i] = cs
	}

	cs := &EnumerableCallSite{
		ItemType: itemType,
		Items:    items,
		Collect:  sliceCollector(key.Type),
	}
	f.cache[sk] = cs
	return cs, nil
}

// sliceCollector 把解析结果组装成 sliceType 类型的切片，长度与 items 相同。
func sliceCollector(sliceType reflect.Type) func(items []any) any {
	elem := sliceType.Elem()
	return func(items []any) any {
		out := reflect.MakeSlice(sliceType, len(items), len(items))
		for i, v := range items {
			out.Index(i).Set(argValue(v, elem))
		}
		return out.Interface()
	}
}

func (f *callSiteFactory) createExact(d *ServiceDescriptor, slot int, chain *buildChain) (CallSite, error) {
	sk := slotKey{serviceKey: d.key(), Slot: slot}
	if cs, ok := f.cache[sk]; ok {
		return cs, nil
	}

	if err := chain.enter(sk); err != nil {
		return nil, err
	}
	defer chain.leave()

	impl, err := f.createImplementation(d, chain)
	if err != nil {
		return nil, err
	}

	var cs CallSite
	key := CacheKey{Type: d.ServiceType, Name: d.Name, Slot: slot, Lifetime: d.Lifetime}
	switch {
	case d.Instance != nil:
		// 外部实例不属于容器，不缓存也不释放
		cs = impl
	case d.Lifetime == Transient:
		cs = &TransientCallSite{Inner: impl}
	case d.Lifetime == Scoped:
		cs = &ScopedCallSite{Inner: impl, Key: key}
	default:
		cs = &SingletonCallSite{Inner: impl, Key: key}
	}
	f.cache[sk] = cs
	return cs, nil
}

func (f *callSiteFactory) createImplementation(d *ServiceDescriptor, chain *buildChain) (CallSite, error) {
	switch {
	case d.Instance != nil:
		return &ConstantCallSite{Type: d.ServiceType, Value: d.Instance}, nil

	case d.Factory != nil:
		return &FactoryCallSite{Type: d.ServiceType, Factory: d.Factory}, nil

	case d.Constructor != nil:
		fnType := reflect.TypeOf(d.Constructor)
		params := make([]CallSite, fnType.NumIn())
		for i := range params {
			p, err := f.createParameter(serviceKey{Type: fnType.In(i)}, false, chain)
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
		return &ConstructorCallSite{
			Type:               d.ServiceType,
			ImplementationType: fnType.Out(0),
			Parameters:         params,
			Activator:          newFuncActivator(d.Constructor),
		}, nil

	default:
		structType, _ := structOf(d.ImplementationType)
		fields, err := injectableFields(structType)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return &CreateInstanceCallSite{
				Type:               d.ServiceType,
				ImplementationType: d.ImplementationType,
				New:                newInstanceFunc(d.ImplementationType),
			}, nil
		}

		params := make([]CallSite, len(fields))
		for i, field := range fields {
			p, err := f.createParameter(serviceKey{Type: field.Type, Name: field.ServiceName}, field.Optional, chain)
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
		return &ConstructorCallSite{
			Type:               d.ServiceType,
			ImplementationType: d.ImplementationType,
			Parameters:         params,
			Activator:          newStructActivator(d.ImplementationType, fields),
		}, nil
	}
}

// createParameter 构建一个依赖的调用点。可选依赖未注册时使用零值。
func (f *callSiteFactory) createParameter(key serviceKey, optional bool, chain *buildChain) (CallSite, error) {
	if optional && !f.resolvable(key) {
		return &ConstantCallSite{Type: key.Type, Value: nil}, nil
	}
	return f.create(key, chain)
}

// buildChain 记录构建过程中的依赖路径，用于发现循环依赖。
type buildChain struct {
	path []slotKey
}

func (c *buildChain) enter(k slotKey) error {
	for _, p := range c.path {
		if p == k {
			return fmt.Errorf("%w: %s", ErrCircularDependency, c.describe(k.String()))
		}
	}
	c.path = append(c.path, k)
	return nil
}

func (c *buildChain) leave() {
	c.path = c.path[:len(c.path)-1]
}

func (c *buildChain) describe(last string) string {
	parts := make([]string, 0, len(c.path)+1)
	for _, p := range c.path {
		parts = append(parts, p.String())
	}
	parts = append(parts, last)
	return strings.Join(parts, " -> ")
}
