package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arena2api/arena2api/internal/api/handlers"
	"github.com/arena2api/arena2api/internal/config"
	"github.com/arena2api/arena2api/internal/logging"
	"github.com/arena2api/arena2api/internal/profile"
	"github.com/arena2api/arena2api/internal/runtime/executor"
)

var serveConfigPath string

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveConfigPath)
		},
	}
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "config.yaml", "YAML config path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(configPath string) error {
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Debug, cfg.LoggingToFile, cfg.LogDir)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store := config.NewStore(cfg)
	registry := profile.NewRegistry(profile.Limits{
		Capacity:       cfg.Pool.Capacity,
		TokenTTL:       time.Duration(cfg.Pool.TokenTTLSeconds) * time.Second,
		MinTokenLength: cfg.Pool.MinTokenLength,
		ProfileTimeout: time.Duration(cfg.Pool.ProfileTimeoutSeconds) * time.Second,
		SweepInterval:  time.Duration(cfg.Pool.SweepIntervalSeconds) * time.Second,
	})
	exec, err := executor.New(cfg)
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	handlers.New(store, registry, exec).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infof("arena2api %s listening on :%d", handlers.Version, cfg.Port)
		log.Infof("OpenAI API: http://localhost:%d/v1", cfg.Port)
		log.Info("waiting for the browser extension to connect")
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		if sweepErr := registry.Run(ctx); sweepErr != nil && !errors.Is(sweepErr, context.Canceled) {
			return sweepErr
		}
		return nil
	})
	group.Go(func() error {
		// Nothing to watch when running on pure defaults.
		if _, statErr := os.Stat(configPath); statErr != nil {
			return nil
		}
		if watchErr := config.Watch(ctx, configPath, store); watchErr != nil && !errors.Is(watchErr, context.Canceled) {
			return watchErr
		}
		return nil
	})

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
