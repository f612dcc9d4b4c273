package di

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder 记录释放顺序
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

type trackedResource struct {
	name  string
	rec   *recorder
	count int
	err   error
}

func (r *trackedResource) Dispose() error {
	r.count++
	r.rec.add(r.name)
	return r.err
}

func transientOf(v any) *TransientCallSite {
	return &TransientCallSite{Inner: &FactoryCallSite{Type: TypeOf[any](), Factory: func(*Scope) (any, error) {
		return v, nil
	}}}
}

func TestScopeDisposeReverseOrderOnce(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()
	rec := &recorder{}

	first := &trackedResource{name: "first", rec: rec}
	second := &trackedResource{name: "second", rec: rec}
	closer := &closeCounter{}

	for _, v := range []any{first, second, closer} {
		_, err := scope.ResolveCallSite(transientOf(v))
		require.NoError(t, err)
	}

	require.NoError(t, scope.Dispose())
	require.NoError(t, scope.Dispose())

	assert.Equal(t, []string{"second", "first"}, rec.order)
	assert.Equal(t, 1, first.count)
	assert.Equal(t, 1, second.count)
	assert.EqualValues(t, 1, closer.closed.Load())
	assert.True(t, scope.IsDisposed())
}

func TestScopeDisposeAggregatesErrors(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()
	rec := &recorder{}

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	a := &trackedResource{name: "a", rec: rec, err: errA}
	b := &trackedResource{name: "b", rec: rec, err: errB}
	c := &trackedResource{name: "c", rec: rec}

	for _, v := range []any{a, b, c} {
		_, err := scope.ResolveCallSite(transientOf(v))
		require.NoError(t, err)
	}

	err := scope.Dispose()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	// 失败不影响其它实例的释放
	assert.Equal(t, []string{"c", "b", "a"}, rec.order)
}

func TestScopeScopedCapturedOnceAcrossResolutions(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()

	var created []*closeCounter
	cs := &ScopedCallSite{
		Key: CacheKey{Type: TypeOf[*closeCounter](), Lifetime: Scoped},
		Inner: &FactoryCallSite{Type: TypeOf[*closeCounter](), Factory: func(*Scope) (any, error) {
			c := &closeCounter{}
			created = append(created, c)
			return c, nil
		}},
	}
	for i := 0; i < 5; i++ {
		_, err := scope.ResolveCallSite(cs)
		require.NoError(t, err)
	}

	require.NoError(t, scope.Dispose())
	require.Len(t, created, 1)
	assert.EqualValues(t, 1, created[0].closed.Load())
}

func TestScopeSingletonOwnedByRoot(t *testing.T) {
	engine, err := NewServiceCollection().Build()
	require.NoError(t, err)

	scope := engine.CreateScope()
	single := &closeCounter{}
	cs := &SingletonCallSite{
		Key:   CacheKey{Type: TypeOf[*closeCounter](), Lifetime: Singleton},
		Inner: &FactoryCallSite{Type: TypeOf[*closeCounter](), Factory: func(*Scope) (any, error) { return single, nil }},
	}
	_, err = scope.ResolveCallSite(cs)
	require.NoError(t, err)

	require.NoError(t, scope.Dispose())
	assert.EqualValues(t, 0, single.closed.Load())

	require.NoError(t, engine.Dispose())
	assert.EqualValues(t, 1, single.closed.Load())
}

func TestScopeResolveAfterDispose(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()
	require.NoError(t, scope.Dispose())

	_, err := scope.ResolveCallSite(&ConstantCallSite{Type: TypeOf[int](), Value: 1})
	assert.ErrorIs(t, err, ErrScopeDisposed)

	_, err = scope.GetService(TypeOf[*Scope]())
	assert.ErrorIs(t, err, ErrScopeDisposed)
}

func TestScopeCaptureAfterDispose(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()
	require.NoError(t, scope.Dispose())

	late := &closeCounter{}
	err := scope.captureDisposable(late, nil)
	assert.ErrorIs(t, err, ErrScopeDisposed)
	assert.EqualValues(t, 1, late.closed.Load())
}

func TestScopeCaptureSkipsNonDisposable(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()

	require.NoError(t, scope.captureDisposable(&widget{}, nil))
	require.NoError(t, scope.captureDisposable(scope, nil))
	require.NoError(t, scope.captureDisposable(engine, nil))
	assert.Empty(t, scope.disposables)
	require.NoError(t, scope.Dispose())
}

func TestScopeCaptureSameInstanceOnce(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()

	shared := &closeCounter{}
	for i := 0; i < 3; i++ {
		_, err := scope.ResolveCallSite(transientOf(shared))
		require.NoError(t, err)
	}
	assert.Len(t, scope.disposables, 1)

	require.NoError(t, scope.Dispose())
	assert.EqualValues(t, 1, shared.closed.Load())
}

// taggedCloser 是值类型的可释放实例，切片字段使它无法用 == 比较
type taggedCloser struct {
	Tags   []string
	closed *atomic.Int32
}

func (c taggedCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func TestScopeCaptureValueDisposablesSeparately(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()

	var closed atomic.Int32
	cs := &TransientCallSite{Inner: &FactoryCallSite{
		Type: TypeOf[taggedCloser](),
		Factory: func(*Scope) (any, error) {
			return taggedCloser{Tags: []string{"a"}, closed: &closed}, nil
		},
	}}

	for i := 0; i < 2; i++ {
		require.NotPanics(t, func() {
			_, err := scope.ResolveCallSite(cs)
			require.NoError(t, err)
		})
	}
	assert.Len(t, scope.disposables, 2)

	require.NoError(t, scope.Dispose())
	assert.EqualValues(t, 2, closed.Load())
}

func TestScopeConcurrentCapture(t *testing.T) {
	engine := newTestEngine(t)
	scope := engine.CreateScope()

	const n = 100
	items := make([]*closeCounter, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		items[i] = &closeCounter{}
		wg.Add(1)
		go func(c *closeCounter) {
			defer wg.Done()
			_, err := scope.ResolveCallSite(transientOf(c))
			assert.NoError(t, err)
		}(items[i])
	}
	wg.Wait()

	require.NoError(t, scope.Dispose())
	for _, c := range items {
		assert.EqualValues(t, 1, c.closed.Load())
	}
}

func TestScopeIdentity(t *testing.T) {
	engine := newTestEngine(t)
	s1 := engine.CreateScope()
	s2 := s1.CreateScope()
	defer s1.Dispose()
	defer s2.Dispose()

	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Same(t, engine.Root(), s1.Root())
	assert.Same(t, engine.Root(), s2.Root())
	assert.True(t, engine.Root().IsRoot())
	assert.False(t, s1.IsRoot())
	assert.Same(t, engine, s2.Engine())
}
