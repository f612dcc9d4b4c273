package mongodb

import (
	"testing"
	"time"

	"github.com/gocrud/mgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/svchost/core"
	"github.com/gocrud/svchost/di"
)

const testURI = "mongodb://localhost:27017/?directConnection=true"

type reportService struct {
	Reports *mgo.Client `di:"reports"`
	Archive *mgo.Client `di:"archive,?"`
}

func TestConfigureRegistersClients(t *testing.T) {
	app, err := core.NewApplicationBuilder().
		DisableSignalHandling().
		ConfigureServices(func(s *core.ServiceCollection) {
			core.AddSingleton[*reportService](s, nil)
		}).
		Configure(New(
			WithClient("reports", testURI, func(o *Options) {
				o.Timeout = time.Second
				o.MaxPoolSize = 10
			}),
			WithClient(DefaultName, testURI),
		)).
		Build()
	require.NoError(t, err)
	engine := app.Services()

	svc := di.MustResolve[*reportService](engine)
	require.NotNil(t, svc.Reports)
	assert.Nil(t, svc.Archive)

	client, err := di.ResolveNamed[*Client](engine, "reports")
	require.NoError(t, err)
	assert.Equal(t, "reports", client.Name())
	assert.Same(t, client.Mgo(), svc.Reports)

	def, err := di.Resolve[*Client](engine)
	require.NoError(t, err)
	named, err := di.ResolveNamed[*Client](engine, DefaultName)
	require.NoError(t, err)
	assert.Same(t, def, named)

	mc, err := di.Resolve[*mgo.Client](engine)
	require.NoError(t, err)
	assert.Same(t, def.Mgo(), mc)

	// 默认客户端以两个键注册，但只断开一次
	require.NoError(t, engine.Dispose())
	assert.NoError(t, client.Close())
	assert.NoError(t, def.Close())
}

func TestBuilderValidation(t *testing.T) {
	b := NewBuilder(nil).
		Add("", testURI, nil).
		Add("nouri", "", nil).
		Add("dup", testURI, nil).
		Add("dup", testURI, nil)

	require.Error(t, b.Err())
	assert.ErrorContains(t, b.Err(), "mongo client name is required")
	assert.ErrorContains(t, b.Err(), "mongo uri is required")
	assert.ErrorContains(t, b.Err(), "already configured")

	assert.Panics(t, func() {
		_, _ = core.NewApplicationBuilder().
			Configure(New(WithClient("bad", testURI, func(o *Options) { o.Timeout = 0 }))).
			Build()
	})
}

func TestClientOptions(t *testing.T) {
	opts := NewDefaultOptions("app", testURI)
	opts.Username = "svc"
	opts.Password = "secret"

	co := opts.clientOptions()
	require.NotNil(t, co.Auth)
	assert.Equal(t, "svc", co.Auth.Username)
	require.NotNil(t, co.MaxPoolSize)
	assert.EqualValues(t, 100, *co.MaxPoolSize)
	require.NotNil(t, co.ConnectTimeout)
	assert.Equal(t, 10*time.Second, *co.ConnectTimeout)
}

func TestConnectRejectsInvalidOptions(t *testing.T) {
	_, err := Connect(Options{Name: "bad", URI: testURI})
	assert.ErrorContains(t, err, "mongo timeout must be positive")
}
