package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/hspatel/fileshare/internal/config"
	"github.com/hspatel/fileshare/internal/db"
	"github.com/hspatel/fileshare/internal/handler"
	"github.com/hspatel/fileshare/internal/job"
	"github.com/hspatel/fileshare/internal/middleware"
	"github.com/hspatel/fileshare/internal/objstore"
	"github.com/hspatel/fileshare/internal/repo"
	"github.com/hspatel/fileshare/internal/schedule"
	"github.com/hspatel/fileshare/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "fileshare",
		Short: "fileshare backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run fileshare server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("object_store", cfg.ObjectStore.Type),
		zap.Bool("exclusive", cfg.Share.Exclusive),
	)

	shareRepo := repo.NewShareRepo(conn)
	blobs, err := objstore.New(cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	notifier := service.NewSMTPNotifier(cfg.Mail)

	urlTTL := time.Duration(cfg.Share.URLTTLSeconds) * time.Second
	cleaner := service.NewCleaner(shareRepo, blobs,
		time.Duration(cfg.Share.CleanupDelaySeconds)*time.Second, cfg.Share.Exclusive)
	shareService := service.NewShareService(shareRepo, blobs, notifier, cleaner, service.Options{
		URLTTL:        urlTTL,
		PublicBaseURL: cfg.PublicBaseURL,
		Exclusive:     cfg.Share.Exclusive,
	})
	shareHandler := handler.NewShareHandler(shareService)

	scheduler := schedule.NewCronScheduler()
	if cfg.Share.ReclaimSpec != "" {
		keepAge := time.Duration(cfg.Share.ReclaimKeepDays) * 24 * time.Hour
		if err := scheduler.AddJob(job.NewReclaimJob(shareRepo, cleaner, keepAge), cfg.Share.ReclaimSpec); err != nil {
			return fmt.Errorf("schedule reclaim job: %w", err)
		}
	}

	deps := handler.RouterDeps{
		Shares:          shareHandler,
		UploadRateLimit: time.Second,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	cleaner.Wait()
	return nil
}
