package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"imu-recorder/internal/collector"
	"imu-recorder/internal/database"
	"imu-recorder/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "imu-collector",
	Short: "receives measurement documents and archives them in ClickHouse",
	Long: `imu-collector accepts the measurement documents posted by imu-recorder devices,
in either document schema, and archives windows and samples in ClickHouse.
The configuration is resolved in this order:
1. command line flags
2. COLLECTOR_* environment variables
3. the file given with --config`,
	Example: `  imu-collector --listen :8080 --config /etc/imu/collector.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadCollector(cmd)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func main() {
	config.CollectorFlags(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func serve(cfg *config.CollectorConfig) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewClickHouseDB(
		cfg.ClickHouse.Addr,
		cfg.ClickHouse.Database,
		cfg.ClickHouse.Username,
		cfg.ClickHouse.Password,
	)
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	defer db.Close()

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: collector.NewServer(db).Router(cfg.Path),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutdown signal received, stopping collector...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Collector: shutdown failed: %v", err)
		}
	}()

	log.Infof("Collector: listening on %s, documents at POST %s", cfg.Listen, cfg.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("Shutdown complete. Goodbye!")
	return nil
}
