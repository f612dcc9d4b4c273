package core

import "fmt"

// Extension 定义应用程序扩展的基础接口
// 扩展模块应该实现 ServiceConfigurator 或 AppConfigurator 接口（或两者都实现）
type Extension interface {
	// Name 返回扩展的名称，用于日志记录和调试
	Name() string
}

// ServiceConfigurator 负责注册依赖注入服务
type ServiceConfigurator interface {
	ConfigureServices(services *ServiceCollection)
}

// AppConfigurator 负责配置应用程序构建上下文，用于设置 Options、HostedService 等
type AppConfigurator interface {
	ConfigureBuilder(ctx *BuildContext)
}

// validateExtension 扩展未实现任何支持的接口时 panic
func validateExtension(ext Extension) {
	_, isServiceConfigurator := ext.(ServiceConfigurator)
	_, isAppConfigurator := ext.(AppConfigurator)

	if !isServiceConfigurator && !isAppConfigurator {
		panic(fmt.Sprintf("app: Extension '%s' does not implement any supported interfaces (ServiceConfigurator, AppConfigurator). \n"+
			"Check if your method signatures exactly match the interface definitions.", ext.Name()))
	}
}
