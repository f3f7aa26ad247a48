package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grocery-sync/confs"
	"grocery-sync/db"
	"grocery-sync/server"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "grocery-sync",
	Short:         "grocery-sync - shared grocery lists with live location updates",
	RunE:          runServer,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.Connect(cfg.DB)
		if err != nil {
			return err
		}
		return database.Close()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("addr", "", "listen address (ADDR)")
	flags.String("list-scope", "", "grocery list scope: global or owner-only (LIST_SCOPE)")
	flags.String("log-level", "", "log level (LOG_LEVEL)")
	flags.String("log-format", "", "log format: text or json (LOG_FORMAT)")
	flags.String("redis-url", "", "redis url for the realtime backplane (REDIS_URL)")

	for key, flag := range map[string]string{
		"addr":       "addr",
		"list_scope": "list-scope",
		"log_level":  "log-level",
		"log_format": "log-format",
		"redis_url":  "redis-url",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*confs.Config, error) {
	cfg, err := confs.LoadConfig(v)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if err := confs.SetupLogging(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Env != confs.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	// connect to database Postgres
	database, err := db.Connect(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer database.Close()

	srv, err := server.NewServer(cfg, database)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{"env": cfg.Env, "list_scope": cfg.ListScope}).Info("Starting grocery-sync")
	return srv.Run(ctx)
}
