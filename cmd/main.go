package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/don-licenciao/MapyChat-web/internal/coerce"
	"github.com/don-licenciao/MapyChat-web/internal/config"
	"github.com/don-licenciao/MapyChat-web/internal/guard"
	"github.com/don-licenciao/MapyChat-web/internal/handler"
	"github.com/don-licenciao/MapyChat-web/internal/metrics"
	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/internal/ratelimit"
	"github.com/don-licenciao/MapyChat-web/internal/service"
	"github.com/don-licenciao/MapyChat-web/internal/storage"
	"github.com/don-licenciao/MapyChat-web/internal/utils"
	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	if cfg.Upstream.APIKey == "" {
		logger.Warnf("XAI_API_KEY is not set; chat requests will fail until it is")
	}

	m := metrics.New()
	limiter := ratelimit.New(storage.NewMemoryStorage(), cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())

	chatHandler := handler.NewChatHandler(handler.Deps{
		Service:        service.NewChatService(cfg.Upstream, cfg.Proxy, utils.NewHTTPClient(cfg.Upstream.ResponseHeaderTimeout), m),
		Limiter:        limiter,
		Guard:          guard.New(),
		Coercer:        coerce.New(coerce.LimitsFrom(cfg.Limits)),
		Models:         model.NewCatalog(cfg.Proxy.Models),
		Metrics:        m,
		AllowedOrigins: cfg.Proxy.AllowedOrigins,
		MaxBodyBytes:   cfg.Limits.MaxBodyBytes,
	})

	if config.Watch(func(c *config.Config) {
		limiter.Reconfigure(c.RateLimit.MaxRequests, c.RateLimit.Window())
		logger.Infof("rate limit reloaded: %d requests per %s", c.RateLimit.MaxRequests, c.RateLimit.Window())
	}) {
		logger.Infof("watching %s for rate limit changes", configPath)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(chatHandler, handler.RouterOptions{
		ChatPath: cfg.Proxy.Path,
		CORS:     cfg.CORS,
		Metrics:  m.Handler(),
	})

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("chat proxy listening on :%d%s", cfg.Server.Port, cfg.Proxy.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down, draining open streams")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
	logger.Info("server stopped")
}
