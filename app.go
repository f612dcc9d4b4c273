// Package svchost 是应用程序的入口点。
//
// 服务通过 ApplicationBuilder 注册到服务集合，构建后由调用点引擎解析；
// 托管服务随应用启动与停止，根作用域在应用退出时释放。
package svchost

import "github.com/gocrud/svchost/core"

// NewApplicationBuilder 创建应用程序构建器
// 这是创建应用程序的入口点
func NewApplicationBuilder() *core.ApplicationBuilder {
	return core.NewApplicationBuilder()
}
