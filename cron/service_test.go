package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/hosting"
)

type unitOfWork struct {
	disposed atomic.Bool
}

func (u *unitOfWork) Dispose() error {
	u.disposed.Store(true)
	return nil
}

func newEngine(t *testing.T) *di.Engine {
	t.Helper()
	services := di.NewServiceCollection()
	di.AddScoped[*unitOfWork](services, func() *unitOfWork { return &unitOfWork{} })
	engine, err := services.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Dispose() })
	return engine
}

func TestRunJobUsesFreshScope(t *testing.T) {
	engine := newEngine(t)

	var seen []*unitOfWork
	svc, err := NewBuilder().
		AddJob("@every 1h", "work", func(a, b *unitOfWork, scope *di.Scope) {
			assert.Same(t, a, b)
			assert.False(t, scope.IsRoot())
			seen = append(seen, a)
		}).
		Build(engine, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Trigger("work"))
	require.NoError(t, svc.Trigger("work"))

	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
	assert.True(t, seen[0].disposed.Load())
	assert.True(t, seen[1].disposed.Load())
}

func TestRunJobHandlerKinds(t *testing.T) {
	engine := newEngine(t)
	boom := errors.New("boom")

	var plain atomic.Int32
	svc, err := NewBuilder().
		AddJob("@hourly", "plain", func() { plain.Add(1) }).
		AddJob("@hourly", "ctx", func(ctx context.Context) error { return boom }).
		AddJob("@hourly", "di-error", func(*unitOfWork) error { return boom }).
		AddJob("@hourly", "missing", func(*hosting.FuncService) {}).
		AddJob("@hourly", "panics", func() { panic("bad job") }).
		Build(engine, nil)
	require.NoError(t, err)

	assert.NoError(t, svc.Trigger("plain"))
	assert.Equal(t, int32(1), plain.Load())
	assert.ErrorIs(t, svc.Trigger("ctx"), boom)
	assert.ErrorIs(t, svc.Trigger("di-error"), boom)
	assert.ErrorIs(t, svc.Trigger("missing"), di.ErrServiceNotFound)
	assert.ErrorContains(t, svc.Trigger("panics"), "bad job")

	assert.Len(t, svc.Jobs(), 5)
	svc.RemoveJob("plain")
	assert.Len(t, svc.Jobs(), 4)
	assert.Error(t, svc.Trigger("plain"))
}

func TestBuilderValidation(t *testing.T) {
	engine := newEngine(t)

	_, err := NewBuilder().AddJob("not a spec", "bad", func() {}).Build(engine, nil)
	assert.ErrorContains(t, err, "invalid spec for job 'bad'")

	_, err = NewBuilder().AddJob("@hourly", "a", func() {}).AddJob("@daily", "a", func() {}).Build(engine, nil)
	assert.ErrorContains(t, err, "duplicate job name 'a'")

	_, err = NewBuilder().AddJob("@hourly", "x", 42).Build(engine, nil)
	assert.ErrorContains(t, err, "must be a function")

	_, err = NewBuilder().WithLocation("Nowhere/Special").Build(engine, nil)
	assert.ErrorContains(t, err, "invalid location")

	_, err = NewBuilder().WithSeconds().AddJob("*/5 * * * * *", "fast", func() {}).Build(engine, nil)
	assert.NoError(t, err)
}

func TestStartStop(t *testing.T) {
	svc, err := NewBuilder().Build(newEngine(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, svc.Stop(context.Background()))
}

func TestConfigureRegistersHostedService(t *testing.T) {
	app, err := core.NewApplicationBuilder().
		DisableSignalHandling().
		Configure(New(WithSeconds(), AddJob("*/30 * * * * *", "noop", func() {}))).
		Build()
	require.NoError(t, err)

	hosted, err := di.ResolveAll[hosting.HostedService](app.Services())
	require.NoError(t, err)
	require.Len(t, hosted, 1)

	svc, ok := hosted[0].(*Service)
	require.True(t, ok)
	assert.Contains(t, svc.Jobs(), "noop")
	assert.Same(t, app.Services(), svc.engine)
}

func TestConfigurePanicsOnInvalidJob(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = core.NewApplicationBuilder().
			Configure(New(AddJob("bogus", "bad", func() {}))).
			Build()
	})
}
