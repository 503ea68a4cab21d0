package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coderun/internal/common/cache"
	"coderun/internal/execution/observer"
	"coderun/internal/execution/pipeline"
	"coderun/internal/history"
	"coderun/internal/server"
	"coderun/pkg/utils/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept run requests over a WebSocket",
	Long: `Start the coderun service.

Endpoints:
  GET /ws                 WebSocket; send {"event":"run","data":{"language":"python"}}
  GET /health             Liveness and the languages on offer
  GET /metrics            Prometheus metrics
  GET /api/v1/runs        Recent runs (history enabled)
  GET /api/v1/runs/{id}   One run (history enabled)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := buildRegistry(cfg.Languages)
	if err != nil {
		logger.Error(ctx, "init language registry failed", zap.Error(err))
		return err
	}
	if err := os.MkdirAll(cfg.Service.WorkDir, 0o755); err != nil {
		logger.Error(ctx, "create work dir failed", zap.String("dir", cfg.Service.WorkDir), zap.Error(err))
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observer.NewPrometheusRecorder(promReg)
	if err != nil {
		logger.Error(ctx, "init metrics failed", zap.Error(err))
		return err
	}

	pipeCfg := pipeline.Config{
		Resolver:       reg,
		SampleInterval: cfg.Execution.SampleInterval,
		Metrics:        metrics,
	}
	runCfg := server.RunConfig{
		Resolver:      reg,
		WorkDir:       cfg.Service.WorkDir,
		ScriptDir:     cfg.Service.ScriptDir,
		Input:         cfg.Service.Input,
		MaxConcurrent: cfg.Service.MaxConcurrent,
		QueueWait:     cfg.Service.QueueWait,
	}
	routerCfg := server.RouterConfig{Gatherer: promReg, CORS: cfg.CORS}
	deps := make(map[string]server.Pinger)

	if cfg.History.Enabled {
		redisCache, err := cache.NewRedisCacheWithConfig(ctx, &cfg.Redis)
		if err != nil {
			logger.Error(ctx, "init redis failed", zap.Error(err))
			return err
		}
		defer func() {
			_ = redisCache.Close()
		}()
		store, err := history.NewStore(redisCache, history.Config{TTL: cfg.History.TTL, Recent: cfg.History.Recent})
		if err != nil {
			logger.Error(ctx, "init history store failed", zap.Error(err))
			return err
		}
		defer store.Close()

		pipeCfg.Reporter = store
		runCfg.History = store
		routerCfg.Runs = server.NewRunsController(store)
		deps["redis"] = store
	}

	pipe, err := pipeline.New(pipeCfg)
	if err != nil {
		logger.Error(ctx, "init pipeline failed", zap.Error(err))
		return err
	}
	runCfg.Executor = pipe
	runs, err := server.NewRunService(runCfg)
	if err != nil {
		logger.Error(ctx, "init run service failed", zap.Error(err))
		return err
	}
	socket := server.NewSocketHandler(runs, server.SocketConfig{
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Service.AllowedOrigins,
	})
	routerCfg.Socket = socket
	routerCfg.Health = server.NewHealthController(reg.IDs(), deps)

	gin.SetMode(gin.ReleaseMode)
	httpServer := server.NewHTTPServer(cfg.Server, server.NewRouter(routerCfg))
	// Request contexts end with ctx, so shutdown closes sockets and kills running children.
	httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "coderun server started",
			zap.String("addr", listener.Addr().String()),
			zap.Strings("languages", reg.IDs()),
			zap.Bool("history", cfg.History.Enabled),
			zap.Int("max_concurrent", cfg.Service.MaxConcurrent),
		)
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	socket.Wait()
	logger.Info(context.Background(), "coderun server stopped")
	return nil
}
