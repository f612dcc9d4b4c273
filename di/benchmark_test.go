package di_test

import (
	"testing"

	"github.com/gocrud/svchost/di"
)

// 基准测试接口和实现
type BenchLogger interface {
	Log(msg string)
}

type BenchConsoleLogger struct{}

func (l *BenchConsoleLogger) Log(msg string) {}

type BenchDatabase interface {
	Query(sql string) error
}

type BenchMySQLDB struct{}

func (db *BenchMySQLDB) Query(sql string) error { return nil }

type BenchCache interface {
	Get(key string) string
	Set(key, value string)
}

type BenchRedisCache struct{}

func (c *BenchRedisCache) Get(key string) string { return "" }
func (c *BenchRedisCache) Set(key, value string) {}

type BenchRepository struct {
	Database BenchDatabase `di:""`
	Cache    BenchCache    `di:""`
	Logger   BenchLogger   `di:""`
}

type BenchBusinessService struct {
	Repo   *BenchRepository `di:""`
	Logger BenchLogger      `di:""`
}

type BenchAPIService struct {
	Business *BenchBusinessService `di:""`
	Logger   BenchLogger           `di:""`
	Cache    BenchCache            `di:""`
}

func registerComplex(services *di.ServiceCollection, lifetime di.Lifetime) {
	di.AddSingleton[BenchLogger](services, nil, di.Use[*BenchConsoleLogger]())
	di.AddSingleton[BenchDatabase](services, nil, di.Use[*BenchMySQLDB]())
	di.AddSingleton[BenchCache](services, nil, di.Use[*BenchRedisCache]())
	di.Register[*BenchRepository](services, di.WithLifetime(lifetime))
	di.Register[*BenchBusinessService](services, di.WithLifetime(lifetime))
	di.Register[*BenchAPIService](services, di.WithLifetime(lifetime))
}

func buildComplex(b *testing.B, lifetime di.Lifetime) *di.Engine {
	b.Helper()
	services := di.NewServiceCollection()
	registerComplex(services, lifetime)
	engine, err := services.Build(di.WithValidateOnBuild())
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	return engine
}

// Benchmark 1: 引擎构建（包含全部调用点的校验）
func BenchmarkBuild_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		services := di.NewServiceCollection()
		registerComplex(services, di.Singleton)
		if _, err := services.Build(di.WithValidateOnBuild()); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark 2: 单例解析（缓存命中）
func BenchmarkResolve_Singleton(b *testing.B) {
	engine := buildComplex(b, di.Singleton)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := di.Resolve[*BenchAPIService](engine); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark 3: 瞬态解析，每次重新构造三层依赖
func BenchmarkResolve_Transient(b *testing.B) {
	engine := buildComplex(b, di.Transient)
	scope := engine.CreateScope()
	defer scope.Dispose()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := di.Resolve[*BenchAPIService](scope); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark 4: 每次迭代新建作用域并解析 Scoped 服务
func BenchmarkResolve_ScopedPerScope(b *testing.B) {
	engine := buildComplex(b, di.Scoped)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		scope := engine.CreateScope()
		if _, err := di.Resolve[*BenchAPIService](scope); err != nil {
			b.Fatal(err)
		}
		_ = scope.Dispose()
	}
}

// Benchmark 5: 并发解析同一个作用域中的 Scoped 服务
func BenchmarkResolve_ScopedConcurrent(b *testing.B) {
	engine := buildComplex(b, di.Scoped)
	scope := engine.CreateScope()
	defer scope.Dispose()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := di.Resolve[*BenchAPIService](scope); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// Benchmark 6: 对比手动创建的性能
func BenchmarkManual_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		logger := &BenchConsoleLogger{}
		cache := &BenchRedisCache{}
		repo := &BenchRepository{Database: &BenchMySQLDB{}, Cache: cache, Logger: logger}
		business := &BenchBusinessService{Repo: repo, Logger: logger}
		_ = &BenchAPIService{Business: business, Logger: logger, Cache: cache}
	}
}
