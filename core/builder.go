package core

// BaseBuilder 提供基础的构建上下文能力
// 模块的 Builder 嵌入此结构体以读取配置、注册清理函数
type BaseBuilder struct {
	ctx *BuildContext
}

// NewBaseBuilder 创建基础构建器，ctx 可以为 nil（单独使用 Builder 时）
func NewBaseBuilder(ctx *BuildContext) BaseBuilder {
	return BaseBuilder{ctx: ctx}
}

// ConfigContext 获取构建上下文（受限接口），未绑定上下文时返回 nil
func (b *BaseBuilder) ConfigContext() ConfigurationContext {
	if b.ctx == nil {
		return nil
	}
	return b.ctx
}

// RegisterCleanup 注册清理函数，未绑定上下文时忽略
func (b *BaseBuilder) RegisterCleanup(key string, fn func()) {
	if b.ctx != nil {
		b.ctx.SetCleanup(key, fn)
	}
}
