package core

import (
	"github.com/gocrud/svchost/config"
	"github.com/gocrud/svchost/logging"
)

// ConfigurationContext 提供配置期间所需的只读能力
type ConfigurationContext interface {
	GetConfiguration() config.Configuration
	GetEnvironment() Environment
	GetLogger() logging.Logger
}

var _ ConfigurationContext = (*BuildContext)(nil)
