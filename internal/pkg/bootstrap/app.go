// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/nacos"
	"beerorder/internal/pkg/tracing"
)

type AppCtx struct {
	Ctx    context.Context
	Mux    *http.ServeMux
	Nacos  *nacos.Client
	Config *Config
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 注册 HTTP 路由并启动后台组件，返回的函数在关停时按注册的逆序调用
	RegisterHandlers func(appCtx AppCtx) (func(ctx context.Context), error)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg, err := LoadConfig(getEnv("CONFIG_PATH", "configs/order-service.yaml"))
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	if info.Port == 0 {
		info.Port = cfg.App.Port
	}
	logger.Init(info.ServiceName, cfg.App.LogLevel)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. 服务注册（可选）
	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err = getOutboundIP()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.L().Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 3. 路由和后台组件
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	mux := http.NewServeMux()
	var cleanup func(ctx context.Context)
	if info.RegisterHandlers != nil {
		cleanup, err = info.RegisterHandlers(AppCtx{Ctx: rootCtx, Mux: mux, Nacos: namingClient, Config: cfg})
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to wire service")
		}
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.L().Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	// 4. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info().Msgf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// a. 先从注册中心摘除，避免新流量进来
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.L().Error().Err(err).Msg("Error deregistering from Nacos")
		}
		namingClient.Close()
	}

	// b. 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("Error shutting down http server")
	}

	// c. 停止消费者等后台组件
	cancelRoot()
	if cleanup != nil {
		cleanup(ctx)
	}

	// d. 最后关闭 Tracer Provider，确保缓冲的 span 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("Error shutting down tracer provider")
	}

	logger.L().Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// getOutboundIP 通过一次 UDP "连接" 取得本机对外的 IP，不会真正发包。
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("dial udp: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
