package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/svchost/di"
	"github.com/gocrud/svchost/logging"
)

// Host Web 主机，作为托管服务运行
type Host struct {
	port            int
	router          *gin.Engine
	server          *http.Server
	logger          logging.Logger
	services        *di.Engine
	controllerTypes []reflect.Type

	mapOnce sync.Once
	mapErr  error

	mu    sync.RWMutex
	addr  string
	ready chan struct{}
}

func (h *Host) Name() string { return "web" }

// Handler 返回完整的 HTTP 处理器，控制器路由在第一次调用时挂载
func (h *Host) Handler() (http.Handler, error) {
	if err := h.mapControllers(); err != nil {
		return nil, err
	}
	return h.router, nil
}

// Address 获取监听地址 (e.g., "[::]:50234")
// 仅在 Ready 关闭后有效
func (h *Host) Address() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.addr
}

// Ready 在开始监听后关闭
func (h *Host) Ready() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready == nil {
		h.ready = make(chan struct{})
	}
	return h.ready
}

// Start 启动 Web 主机
// 注意：此方法会阻塞，直到服务退出。
func (h *Host) Start(ctx context.Context) error {
	if err := h.mapControllers(); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", h.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", addr, err)
	}

	h.mu.Lock()
	h.addr = ln.Addr().String()
	if h.ready == nil {
		h.ready = make(chan struct{})
	}
	close(h.ready)
	h.mu.Unlock()

	h.logger.Info("Web host started", logging.Field{Key: "address", Value: h.Address()})

	// Serve 会一直阻塞直到 Shutdown 被调用或发生错误
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("Web host error", logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	return nil
}

// Stop 优雅停止 Web 主机
func (h *Host) Stop(ctx context.Context) error {
	h.logger.Info("Stopping web host")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown web host gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	h.logger.Info("Web host stopped")
	return nil
}

// mapControllers 从根作用域解析控制器并注册路由，只执行一次
func (h *Host) mapControllers() error {
	h.mapOnce.Do(func() {
		for _, typ := range h.controllerTypes {
			instance, err := h.services.GetService(typ)
			if err != nil {
				h.mapErr = fmt.Errorf("web: failed to resolve controller %v: %w", typ, err)
				return
			}

			ctrl, ok := instance.(Controller)
			if !ok {
				h.mapErr = fmt.Errorf("web: %v does not implement web.Controller", typ)
				return
			}

			ctrl.MountRoutes(h.router)
			h.logger.Debug("Mapped controller routes", logging.Field{Key: "controller", Value: typ.String()})
		}
	})
	return h.mapErr
}
