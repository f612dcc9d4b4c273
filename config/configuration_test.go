package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/svchost/di"
)

type serverSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func TestValueStore(t *testing.T) {
	store := NewValueStore()
	store.Store(map[string]any{"key": "value"})
	assert.Equal(t, "value", store.Load()["key"])

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
	assert.Equal(t, []string{"a", "b"}, cache.GetPathSegments("a::b"))
	assert.Empty(t, cache.GetPathSegments(""))
}

func TestSourcesOverrideInOrder(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  host: localhost\n  port: 8080\nname: demo\n"), 0o644))
	jsonPath := filepath.Join(dir, "app.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"server":{"port":9090}}`), 0o644))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("APP_SERVER_HOST=dotenv-host\nOTHER=1\n"), 0o644))

	t.Setenv("APP_NAME", "from-env")

	cfg, err := NewConfigurationBuilder().
		AddYamlFile(yamlPath).
		AddJsonFile(jsonPath).
		AddDotEnv(envPath, "APP_").
		AddEnvironmentVariables("APP_").
		AddJsonFile(filepath.Join(dir, "missing.json"), true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "dotenv-host", cfg.Get("server:host"))
	assert.Equal(t, "from-env", cfg.Get("name"))
	assert.Equal(t, "", cfg.Get("other"))

	port, err := cfg.GetInt("Server.Port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)

	var settings serverSettings
	require.NoError(t, cfg.Bind("server", &settings))
	assert.Equal(t, serverSettings{Host: "dotenv-host", Port: 9090}, settings)
}

func TestRequiredFileMissing(t *testing.T) {
	_, err := NewConfigurationBuilder().AddYamlFile(filepath.Join(t.TempDir(), "none.yaml")).Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "YamlFile(")
}

func TestSectionAndDefaults(t *testing.T) {
	cfg := NewConfiguration(map[string]any{
		"redis": map[string]any{"addr": "127.0.0.1:6379", "db": 2, "tls": true},
	})

	section := cfg.GetSection("REDIS")
	assert.Equal(t, "127.0.0.1:6379", section.Get("addr"))
	assert.Equal(t, "fallback", section.GetWithDefault("password", "fallback"))

	db, err := section.GetInt("db")
	require.NoError(t, err)
	assert.Equal(t, 2, db)

	tls, err := section.GetBool("tls")
	require.NoError(t, err)
	assert.True(t, tls)

	_, err = section.GetInt("missing")
	assert.Error(t, err)

	all := cfg.GetAll()
	all["redis"].(map[string]any)["addr"] = "changed"
	assert.Equal(t, "127.0.0.1:6379", cfg.Get("redis:addr"))
}

func TestReloadUpdatesSectionsAndCallbacks(t *testing.T) {
	data := map[string]any{"server": map[string]any{"port": 1}}
	rc, err := NewConfigurationBuilder().Add(&funcSource{load: func() (map[string]any, error) {
		return data, nil
	}}).BuildReloadable()
	require.NoError(t, err)

	section := rc.GetSection("server")
	reloaded := 0
	rc.OnReload(func() { reloaded++ })

	data = map[string]any{"server": map[string]any{"port": 2}}
	require.NoError(t, rc.Reload())

	port, err := section.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 2, port)
	assert.Equal(t, 1, reloaded)
}

func TestReloadFailureKeepsOldData(t *testing.T) {
	fail := false
	rc, err := NewConfigurationBuilder().Add(&funcSource{load: func() (map[string]any, error) {
		if fail {
			return nil, errors.New("source down")
		}
		return map[string]any{"k": "v"}, nil
	}}).BuildReloadable()
	require.NoError(t, err)

	fail = true
	require.Error(t, rc.Reload())
	assert.Equal(t, "v", rc.Get("k"))
}

func TestWatchAndClose(t *testing.T) {
	src := &watchSource{}
	rc, err := NewConfigurationBuilder().Add(src).BuildReloadable()
	require.NoError(t, err)

	require.NoError(t, rc.Watch(t.Context(), nil))
	require.NotNil(t, src.onChange)

	src.value = "new"
	src.onChange()
	assert.Equal(t, "new", rc.Get("value"))

	require.NoError(t, rc.Close())
	assert.True(t, src.stopped)
	assert.True(t, src.closed)
}

func TestDecodeEtcdPairs(t *testing.T) {
	got := decodeEtcdPairs("/app/config/", map[string]string{
		"/app/config/server/port": "8080",
		"/app/config/Server/Host": "example",
		"/app/config/debug":       "true",
		"/app/config/":            "ignored",
	})

	assert.Equal(t, map[string]any{
		"server": map[string]any{"port": 8080, "host": "example"},
		"debug":  true,
	}, got)
}

func TestOptionsRegisteredInEngine(t *testing.T) {
	data := map[string]any{"server": map[string]any{"host": "a", "port": 1}}
	rc, err := NewConfigurationBuilder().Add(&funcSource{load: func() (map[string]any, error) {
		return data, nil
	}}).BuildReloadable()
	require.NoError(t, err)

	services := di.NewServiceCollection()
	AddConfiguration(services, rc)
	AddOptions[serverSettings](services, rc, "server")

	engine, err := services.Build()
	require.NoError(t, err)

	static := di.MustResolve[Option[serverSettings]](engine)
	monitor := di.MustResolve[OptionMonitor[serverSettings]](engine)

	scope := engine.CreateScope()
	defer scope.Dispose()
	snapshot := di.MustResolve[OptionSnapshot[serverSettings]](scope)
	assert.Same(t, snapshot, di.MustResolve[OptionSnapshot[serverSettings]](scope))

	data = map[string]any{"server": map[string]any{"host": "b", "port": 2}}
	require.NoError(t, rc.Reload())

	assert.Equal(t, "a", static.Value().Host)
	assert.Equal(t, "a", snapshot.Value().Host)
	assert.Equal(t, "b", monitor.Value().Host)

	other := engine.CreateScope()
	defer other.Dispose()
	assert.Equal(t, "b", di.MustResolve[OptionSnapshot[serverSettings]](other).Value().Host)

	cfg := di.MustResolve[Configuration](engine)
	assert.Equal(t, "b", cfg.Get("server:host"))
	require.NoError(t, engine.Dispose())
}

func TestLoad(t *testing.T) {
	cfg := NewConfiguration(map[string]any{"server": map[string]any{"host": "h", "port": 3}})

	s, err := Load[serverSettings](cfg, "server")
	require.NoError(t, err)
	assert.Equal(t, serverSettings{Host: "h", Port: 3}, s)

	_, err = Load[serverSettings](cfg, "nope")
	assert.Error(t, err)
}

type funcSource struct {
	load func() (map[string]any, error)
}

func (s *funcSource) Name() string                  { return "func" }
func (s *funcSource) Load() (map[string]any, error) { return s.load() }

type watchSource struct {
	value    string
	onChange func()
	stopped  bool
	closed   bool
}

func (s *watchSource) Name() string { return "watch" }

func (s *watchSource) Load() (map[string]any, error) {
	return map[string]any{"value": s.value}, nil
}

func (s *watchSource) StartWatch(_ context.Context, onChange func()) error {
	s.onChange = onChange
	return nil
}

func (s *watchSource) StopWatch() { s.stopped = true }

func (s *watchSource) Close() error {
	s.closed = true
	return nil
}

func BenchmarkConfigGet(b *testing.B) {
	config, _ := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{
			"host": "localhost",
			"port": 8080,
		},
	}).BuildReloadable()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		config.Get("server:host")
	}
}
