package main

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/protolambda/muskoka-client/internal/config"
	"github.com/protolambda/muskoka-client/internal/logger"
	"github.com/protolambda/muskoka-client/internal/monitoring"
	"github.com/protolambda/muskoka-client/internal/storage"
	"github.com/protolambda/muskoka-client/pkg/client"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "muskoka",
	Short: "Browse and submit state transition tests",
	Long: `muskoka queries the transition listing and task API, groups client
results by post-state hash and serves the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		// stdout carries command output
		logger.InitWithOutput(loaded.Logging.Level, loaded.Logging.Format, "muskoka", os.Stderr)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, listingCmd, taskCmd, uploadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newAPIClient builds the API client from the loaded configuration
func newAPIClient() (*client.Client, error) {
	return client.New(client.Config{
		Endpoint:   cfg.API.Endpoint,
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
	})
}

// newSource puts the Redis cache in front of api when caching is enabled.
// The returned cache is nil otherwise.
func newSource(api *client.Client, metrics *monitoring.Metrics) (*storage.CachedSource, *storage.RedisCache) {
	if !cfg.Cache.Enabled {
		return storage.NewCachedSource(api, nil, metrics), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr(),
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		PoolSize: cfg.Cache.PoolSize,
	})
	cache := storage.NewRedisCache(rdb, cfg.Cache.TaskTTL, cfg.Cache.ListingTTL)
	logger.Info("using redis cache", logger.Fields{"addr": cfg.Cache.RedisAddr()})
	return storage.NewCachedSource(api, cache, metrics), cache
}

func inputs() client.Inputs {
	return client.Inputs{BaseURL: cfg.Storage.BaseURL, Bucket: cfg.Storage.InputBucket}
}
