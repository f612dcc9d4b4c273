package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/hosting"
)

// ---------------- Mock Controllers ----------------

type SimpleController struct{}

func (c *SimpleController) MountRoutes(router gin.IRouter) {
	router.GET("/simple", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "simple")
	})
}

type DepService struct {
	Value string
}

// ControllerWithDep 构造函数注入
type ControllerWithDep struct {
	Svc *DepService
}

func NewControllerWithDep(svc *DepService) *ControllerWithDep {
	return &ControllerWithDep{Svc: svc}
}

func (c *ControllerWithDep) MountRoutes(router gin.IRouter) {
	router.GET("/dep", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, c.Svc.Value)
	})
}

// ControllerWithTag 字段注入
type ControllerWithTag struct {
	Svc *DepService `di:""`
}

func (c *ControllerWithTag) MountRoutes(router gin.IRouter) {
	router.GET("/tag", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "tag:"+c.Svc.Value)
	})
}

// requestState 每个请求一个实例
type requestState struct {
	id       int64
	disposed *atomic.Int64
}

func (r *requestState) Dispose() error {
	r.disposed.Add(1)
	return nil
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

// ---------------- Tests ----------------

func TestBuilderAddControllers(t *testing.T) {
	services := di.NewServiceCollection()
	di.AddSingleton[*DepService](services, func() *DepService {
		return &DepService{Value: "injected-value"}
	})

	builder := NewBuilder(nil).
		AddControllers(NewControllerWithDep, &ControllerWithTag{}, &SimpleController{})
	require.NoError(t, builder.RegisterServices(services))

	engine, err := services.Build()
	require.NoError(t, err)
	defer engine.Dispose()

	handler, err := builder.Build(engine).Handler()
	require.NoError(t, err)

	w := get(t, handler, "/simple")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "simple", w.Body.String())

	w = get(t, handler, "/dep")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "injected-value", w.Body.String())

	w = get(t, handler, "/tag")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tag:injected-value", w.Body.String())
}

func TestBuilderDuplicateRegistration(t *testing.T) {
	services := di.NewServiceCollection()
	di.AddInstance(services, &DepService{})

	builder := NewBuilder(nil).
		AddControllers(NewControllerWithDep).
		AddControllers(NewControllerWithDep)
	require.NoError(t, builder.RegisterServices(services))

	assert.Len(t, builder.registeredTypes, 1)
	assert.Equal(t, 2, services.Len())
}

func TestBuilderRejectsInvalidController(t *testing.T) {
	services := di.NewServiceCollection()
	assert.Error(t, NewBuilder(nil).AddControllers(nil).RegisterServices(services))
	assert.Error(t, NewBuilder(nil).AddControllers(func() {}).RegisterServices(services))
}

func TestMapControllersRejectsNonController(t *testing.T) {
	services := di.NewServiceCollection()
	builder := NewBuilder(nil).AddControllers(&DepService{})
	require.NoError(t, builder.RegisterServices(services))

	engine, err := services.Build()
	require.NoError(t, err)

	_, err = builder.Build(engine).Handler()
	assert.ErrorContains(t, err, "does not implement web.Controller")
}

func TestRequestScopePerRequest(t *testing.T) {
	var next, disposed atomic.Int64
	services := di.NewServiceCollection()
	di.AddScoped[*requestState](services, func() *requestState {
		return &requestState{id: next.Add(1), disposed: &disposed}
	})

	builder := NewBuilder(nil)
	builder.Get("/state", func(c *gin.Context) {
		a := MustResolve[*requestState](c)
		b, err := Resolve[*requestState](c)
		require.NoError(t, err)
		assert.Same(t, a, b)
		c.JSON(http.StatusOK, gin.H{"id": a.id})
	})

	engine, err := services.Build()
	require.NoError(t, err)
	defer engine.Dispose()

	handler, err := builder.Build(engine).Handler()
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":1}`, get(t, handler, "/state").Body.String())
	assert.JSONEq(t, `{"id":2}`, get(t, handler, "/state").Body.String())
	assert.Equal(t, int64(2), disposed.Load())
}

func TestResolveWithoutScope(t *testing.T) {
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		_, err := Resolve[*DepService](c)
		assert.ErrorIs(t, err, ErrNoRequestScope)
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, get(t, router, "/").Code)
}

func TestHandleInjectsArguments(t *testing.T) {
	services := di.NewServiceCollection()
	di.AddInstance(services, &DepService{Value: "v"})

	engine, err := services.Build()
	require.NoError(t, err)
	defer engine.Dispose()

	router := gin.New()
	router.Use(RequestScope(engine, nil))
	router.GET("/ok", Handle(func(c *gin.Context, svc *DepService) {
		c.String(http.StatusOK, svc.Value)
	}))
	router.GET("/fail", Handle(func(*DepService) error {
		return errors.New("boom")
	}))
	router.GET("/missing", Handle(func(*requestState) {}))

	assert.Equal(t, "v", get(t, router, "/ok").Body.String())

	w := get(t, router, "/fail")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())

	assert.Equal(t, http.StatusInternalServerError, get(t, router, "/missing").Code)

	assert.Panics(t, func() { Handle("not a func") })
}

func TestConfigureRunsHost(t *testing.T) {
	app, err := core.NewApplicationBuilder().
		DisableSignalHandling().
		ConfigureServices(func(s *core.ServiceCollection) {
			core.AddSingleton[*DepService](s, &DepService{Value: "from-app"})
		}).
		Configure(New(WithPort(0), WithControllers(NewControllerWithDep))).
		Build()
	require.NoError(t, err)

	hosted, err := di.ResolveAll[hosting.HostedService](app.Services())
	require.NoError(t, err)
	require.Len(t, hosted, 1)
	host, ok := hosted[0].(*Host)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunAsync(ctx) }()

	select {
	case <-host.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("web host did not start")
	}

	_, port, err := net.SplitHostPort(host.Address())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/dep")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "from-app", string(body))

	cancel()
	require.NoError(t, <-done)
}
