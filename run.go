package svchost

import (
	"context"

	"github.com/gocrud/svchost/core"
)

// Run 使用配置器构建应用并运行，直到收到退出信号或托管服务失败
//
//	svchost.Run(
//	    web.New(web.WithPort(8080), web.WithControllers(NewUserController)),
//	    cron.New(cron.AddJob("@every 1m", "sync", SyncJob)),
//	)
func Run(configurators ...core.Configurator) error {
	return RunContext(context.Background(), configurators...)
}

// RunContext 同 Run，ctx 取消时应用停止
func RunContext(ctx context.Context, configurators ...core.Configurator) error {
	app, err := NewApplicationBuilder().Configure(configurators...).Build()
	if err != nil {
		return err
	}
	return app.RunAsync(ctx)
}
