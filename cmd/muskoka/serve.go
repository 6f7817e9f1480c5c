package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/protolambda/muskoka-client/internal/logger"
	"github.com/protolambda/muskoka-client/internal/monitoring"
	"github.com/protolambda/muskoka-client/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}
		defer api.Close()

		metrics := monitoring.NewMetrics()
		source, cache := newSource(api, metrics)

		srvCfg := web.Config{
			Addr:     cfg.Dashboard.ListenAddr,
			Source:   source,
			Uploader: api,
			Inputs:   inputs(),
			Metrics:  metrics,
			PageSize: cfg.Dashboard.PageSize,
		}
		if cache != nil {
			defer cache.Close()
			srvCfg.Cache = cache
		}
		if serveAddr != "" {
			srvCfg.Addr = serveAddr
		}

		server, err := web.NewServer(srvCfg)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down dashboard", logger.Fields{"signal": sig.String()})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides dashboard.listen_addr")
}
