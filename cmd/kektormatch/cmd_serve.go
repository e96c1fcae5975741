package main

import (
	"log/slog"

	"github.com/sanonone/kektormatch/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the graph store, matching and clustering over HTTP until
interrupted. Prometheus metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "http-addr", "",
		"Listen address, overrides server.http_addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	matchOpts, err := cfg.MatchOptions()
	if err != nil {
		return err
	}
	addr := cfg.Server.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	srv, err := server.NewServer(eng, server.Options{
		HTTPAddr:  addr,
		AuthToken: cfg.Server.AuthToken,
		TaskTTL:   cfg.Server.TaskTTL,
		Match:     matchOpts,
		Cluster:   cfg.ClusterOptions(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}
	srv.Shutdown()
	return <-errCh
}
