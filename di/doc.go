// Package di 实现基于调用点（call site）的依赖注入引擎。
//
// 服务通过 ServiceCollection 注册，Build 之后得到 Engine。
// 引擎把每个注册编译成不可变的调用点树，解析时由 resolver 递归求值：
//
//   - Transient 每次解析都创建新实例，可释放的实例交给当前作用域；
//   - Scoped 在每个作用域内只创建一次；
//   - Singleton 缓存在根作用域中，整个引擎共享一个实例。
//
// 作用域释放时按捕获的逆序释放所有实现了 io.Closer 或 Disposable 的实例。
//
// 基本用法：
//
//	services := di.NewServiceCollection()
//	di.AddSingleton[*Config](services, NewConfig)
//	di.AddScoped[*UserRepo](services, NewUserRepo)
//	engine, err := services.Build(di.WithValidateOnBuild())
//
//	scope := engine.CreateScope()
//	defer scope.Dispose()
//	repo, err := di.Resolve[*UserRepo](scope)
package di
