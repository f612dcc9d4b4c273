package di

import "github.com/gocrud/svchost/logging"

// BuildOptions 控制引擎的构建与校验。
type BuildOptions struct {
	// ValidateOnBuild 在 Build 时构建所有调用点，提前暴露缺失依赖和循环依赖。
	ValidateOnBuild bool
	// ValidateScopes 禁止从根作用域解析 Scoped 服务，并禁止单例依赖 Scoped 服务。
	ValidateScopes bool
	Logger         logging.Logger
}

// BuildOption 配置 BuildOptions。
type BuildOption func(*BuildOptions)

func defaultBuildOptions() BuildOptions {
	return BuildOptions{Logger: logging.Nop()}
}

func WithValidateOnBuild() BuildOption {
	return func(o *BuildOptions) {
		o.ValidateOnBuild = true
	}
}

func WithValidateScopes() BuildOption {
	return func(o *BuildOptions) {
		o.ValidateScopes = true
	}
}

// WithLogger 设置引擎日志，nil 表示不输出。
func WithLogger(l logging.Logger) BuildOption {
	return func(o *BuildOptions) {
		if l == nil {
			l = logging.Nop()
		}
		o.Logger = l
	}
}
