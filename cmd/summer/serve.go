package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/config"
	"github.com/gravelight-studio/summer/container"
	"github.com/gravelight-studio/summer/database"
	"github.com/gravelight-studio/summer/examples/customer"
	"github.com/gravelight-studio/summer/router"
	"github.com/gravelight-studio/summer/view"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server. Controllers are scanned from app.controller_path,
templates are read from app.webroot and the datasource is opened from the
jdbc.* properties.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Summer starting",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("context_path", cfg.Server.ContextPath),
		zap.String("controllers", cfg.App.ControllerPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	beans := container.New(logger)
	defer func() {
		if err := beans.Close(); err != nil {
			logger.Error("Error releasing beans", zap.Error(err))
		}
	}()

	handler, err := buildApplication(ctx, cfg, beans, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", cfg.Server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
			return err
		}
		logger.Info("Server stopped gracefully")
	}

	return nil
}

// buildApplication wires config -> datasource -> beans -> actions -> router.
// Everything that needs closing is registered in beans.
func buildApplication(ctx context.Context, cfg *config.Config, beans *container.Container, logger *zap.Logger) (http.Handler, error) {
	db, err := database.Open(ctx, database.Config{
		Driver:   cfg.JDBC.Driver,
		URL:      cfg.JDBC.URL,
		Username: cfg.JDBC.Username,
		Password: cfg.JDBC.Password,
		MaxConns: cfg.JDBC.MaxConns,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := beans.Provide(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	limiter, err := newLimiter(ctx, cfg, beans, logger)
	if err != nil {
		return nil, err
	}

	service := customer.NewService(db, logger)
	if err := beans.Provide(service); err != nil {
		return nil, err
	}
	if err := beans.Provide(customer.NewController(service)); err != nil {
		return nil, err
	}

	r, err := router.New(router.Config{
		ControllersDir: cfg.App.ControllerPath,
		Beans:          beans,
		Forwarder: view.New(view.Config{
			Root:   os.DirFS(cfg.App.WebRoot),
			Reload: cfg.App.TemplateReload,
			Logger: logger,
		}),
		ContextPath:    cfg.Server.ContextPath,
		TemplatePath:   cfg.App.TemplatePath,
		AssetPath:      cfg.App.AssetPath,
		WebRoot:        cfg.App.WebRoot,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Compress:       cfg.Server.Compress,
		Limiter:        limiter,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	actions := router.NewActionRegistry(logger)
	customer.Register(actions)

	if err := r.RegisterActions(actions); err != nil {
		return nil, err
	}

	return r, nil
}

// newLimiter returns a Redis-backed limiter when ratelimit.redis_addr is
// set, otherwise an in-process one
func newLimiter(ctx context.Context, cfg *config.Config, beans *container.Container, logger *zap.Logger) (router.Limiter, error) {
	if cfg.RateLimit.RedisAddr == "" {
		limiter := router.NewInMemoryRateLimiter()
		if err := beans.ProvideNamed("ratelimit.memory", stopper{limiter}); err != nil {
			limiter.Stop()
			return nil, err
		}
		return limiter, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := beans.ProvideNamed("ratelimit.redis", client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("Rate limits stored in Redis", zap.String("addr", cfg.RateLimit.RedisAddr))
	return router.NewRedisRateLimiter(client, ""), nil
}

// stopper lets the container stop the in-memory limiter on Close
type stopper struct {
	limiter *router.InMemoryRateLimiter
}

func (s stopper) Close() error {
	s.limiter.Stop()
	return nil
}
