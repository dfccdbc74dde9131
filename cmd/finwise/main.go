package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/handler"
	"github.com/xxxsen/finwise/internal/middleware"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "finwise",
		Short: "finwise question answering assistant",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd.Context(), a, args)
		}
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run finwise server",
		RunE:  withApp(runServer),
	}
	rootCmd.AddCommand(runCmd, newIngestCmd(withApp), newFilesCmd(withApp), newPurgeCmd(withApp),
		newAskCmd(withApp), newCleanupCmd(withApp), newReindexCmd(withApp))

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(_ context.Context, a *app, _ []string) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("index", cfg.Index.Type),
		zap.String("session_store", cfg.Session.Store),
		zap.String("file_store", cfg.FileStore.Type),
	)
	deps := handler.RouterDeps{
		Sessions:   handler.NewSessionHandler(a.router, []byte(cfg.JWTSecret), time.Duration(cfg.Session.TTLHours)*time.Hour),
		Ask:        handler.NewAskHandler(a.router),
		Documents:  handler.NewDocumentHandler(a.docs, cfg.Ingest.MaxUploadMB),
		JWTSecret:  []byte(cfg.JWTSecret),
		RatePerSec: cfg.RateLimit.PerSecond,
		RateBurst:  cfg.RateLimit.Burst,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
