package etcd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/svchost/config"
	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
)

// registryService 依赖命名客户端的服务
type registryService struct {
	Master *clientv3.Client `di:"master"`
	Slave  *clientv3.Client `di:"slave,?"`
}

func TestConfigureRegistersClients(t *testing.T) {
	app, err := core.NewApplicationBuilder().
		DisableSignalHandling().
		ConfigureConfiguration(func(b *config.ConfigurationBuilder) {
			b.AddInMemory(map[string]any{
				"etcd": map[string]any{
					"discovery": map[string]any{"endpoints": []any{"127.0.0.1:23790", "127.0.0.1:23791"}},
				},
			})
		}).
		ConfigureServices(func(s *core.ServiceCollection) {
			core.AddSingleton[*registryService](s, nil)
		}).
		Configure(New(
			WithClient("master", func(o *ClientOptions) { o.Endpoints = []string{"127.0.0.1:2379"} }),
			WithClient(DefaultClientName),
			WithClientFromConfig("discovery", "etcd:discovery"),
		)).
		Build()
	require.NoError(t, err)
	engine := app.Services()

	svc := di.MustResolve[*registryService](engine)
	require.NotNil(t, svc.Master)
	assert.Nil(t, svc.Slave)
	assert.Equal(t, []string{"127.0.0.1:2379"}, svc.Master.Endpoints())

	master, err := di.ResolveNamed[*clientv3.Client](engine, "master")
	require.NoError(t, err)
	assert.Same(t, svc.Master, master)

	def, err := di.Resolve[*clientv3.Client](engine)
	require.NoError(t, err)
	named, err := di.ResolveNamed[*clientv3.Client](engine, DefaultClientName)
	require.NoError(t, err)
	assert.Same(t, def, named)

	discovery, err := di.ResolveNamed[*clientv3.Client](engine, "discovery")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:23790", "127.0.0.1:23791"}, discovery.Endpoints())

	require.NoError(t, engine.Dispose())
	assert.Error(t, master.Ctx().Err())
	assert.Error(t, def.Ctx().Err())
}

func TestBuilderErrors(t *testing.T) {
	b := NewBuilder(nil).
		AddClient("empty", func(o *ClientOptions) { o.Endpoints = nil }).
		AddClient("dup", nil).
		AddClient("dup", nil).
		AddClientFromConfig("nocfg", "etcd:nocfg")

	require.Error(t, b.Err())
	assert.ErrorContains(t, b.Err(), "endpoints are required")
	assert.ErrorContains(t, b.Err(), "already configured")
	assert.ErrorContains(t, b.Err(), "no configuration")

	assert.Panics(t, func() {
		_, _ = core.NewApplicationBuilder().
			Configure(New(WithClient("bad", func(o *ClientOptions) { o.DialTimeout = 0 }))).
			Build()
	})
}

func TestConfigSource(t *testing.T) {
	opts := NewDefaultOptions("cfg")
	opts.Endpoints = []string{"127.0.0.1:2379"}
	opts.DialTimeout = time.Second

	src := ConfigSource(*opts, "/svchost/config/")
	assert.Equal(t, "Etcd(/svchost/config/)", src.Name())
	require.NoError(t, src.Close())
}
