package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/hospitaldata/explorer/internal/database"
	"github.com/hospitaldata/explorer/internal/explorer/service"
	"github.com/hospitaldata/explorer/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration
	useMem  bool
)

// openService connects the command to a store. Tests replace it.
var openService = func(ctx context.Context) (service.Service, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if useMem {
		return service.NewMemoryService(cfg.Catalog), func() {}, nil
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, nil, err
	}
	logger.Debugf("connected to %s, database %q", cfg.MongoDB.URI, cfg.MongoDB.Database)
	closeFn := func() { _ = client.Disconnect(context.Background()) }
	return service.NewMongoService(client.Database(cfg.MongoDB.Database), cfg.Catalog), closeFn, nil
}

var rootCmd = &cobra.Command{
	Use:   "explorer",
	Short: "Browse and edit the hospital MongoDB datasets from the terminal",
	Long: `explorer runs the same queries as the web explorer against the configured
MongoDB database (MONGODB_URI, MONGODB_DATABASE) and prints the result as a table.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetOutput(zapcore.Lock(os.Stderr))
		lvl := os.Getenv("LOG_LEVEL")
		if verbose {
			lvl = "debug"
		}
		logger.Init(lvl)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")
	rootCmd.PersistentFlags().BoolVar(&useMem, "memory", false, "Use an empty in-memory store instead of MongoDB")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
