// Package app 提供应用生命周期管理
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/config"
	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/service"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/metrics"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/resolver"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// App 应用实例
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	// 指标服务
	metricsServer *http.Server

	// 依赖组件
	redis    *redis.Client
	resolver typeddata.NameResolver
	service  service.SignatureService
}

// New 创建应用实例
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Start 启动应用
func (a *App) Start(ctx context.Context) error {
	// 1. 初始化依赖
	if err := a.initDependencies(ctx); err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}

	// 2. 启动指标服务
	if a.cfg.Service.MetricsAddr != "" {
		a.initMetricsServer()
		go func() {
			a.logger.Info("starting metrics server", zap.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	a.logger.Info("application started",
		zap.String("service", a.cfg.Service.Name),
		zap.String("env", a.cfg.Service.Env),
		zap.Bool("mock_mode", a.service.IsMockMode()))
	return nil
}

// Stop 停止应用
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("stopping application")

	// 停止指标服务
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	// 关闭 Redis
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Redis close error", zap.Error(err))
		}
	}

	a.logger.Info("application stopped")
	return nil
}

// WaitForShutdown 等待关闭信号
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Stop(ctx); err != nil {
		a.logger.Error("application stop error", zap.Error(err))
	}
}

// Service 返回签名服务, Start 之前为 nil
func (a *App) Service() service.SignatureService {
	return a.service
}

// Resolver 返回名称解析器, 未配置地址簿时为 nil
func (a *App) Resolver() typeddata.NameResolver {
	return a.resolver
}

// initDependencies 初始化依赖
func (a *App) initDependencies(ctx context.Context) error {
	// 初始化地址簿
	if len(a.cfg.Resolver.AddressBook) > 0 {
		static, err := resolver.NewStatic(a.cfg.Resolver.AddressBook)
		if err != nil {
			return fmt.Errorf("address book: %w", err)
		}
		a.resolver = static
		a.logger.Info("address book loaded", zap.Int("names", static.Len()))
	}

	// 初始化 Redis (如果启用)
	if a.cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr(),
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			PoolSize: a.cfg.Redis.PoolSize,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		a.logger.Info("redis connected", zap.String("addr", a.cfg.Redis.Addr()))

		if a.resolver != nil {
			a.resolver = resolver.NewCached(a.redis, a.resolver,
				resolver.WithTTL(a.cfg.Resolver.CacheTTL),
				resolver.WithKeyPrefix(a.cfg.Resolver.KeyPrefix),
				resolver.WithLogger(a.logger))
		}
	}

	// 初始化签名服务
	opts := []service.Option{service.WithLogger(a.logger)}
	if a.resolver != nil {
		opts = append(opts, service.WithResolver(a.resolver))
	}
	svc, err := service.NewSignatureService(&a.cfg.EIP712, opts...)
	if err != nil {
		return fmt.Errorf("signature service: %w", err)
	}
	a.service = svc

	return nil
}

// initMetricsServer 初始化指标服务
func (a *App) initMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	a.metricsServer = &http.Server{
		Addr:         a.cfg.Service.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
