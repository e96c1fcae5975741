// Command kektormatch runs the graph store and its matching and clustering
// engines, either as an HTTP server, as an MCP tool server, or as one-shot
// commands against the local data directory or a Neo4j database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sanonone/kektormatch/internal/config"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataDir    string
	logLevel   string

	// cfg is loaded once in PersistentPreRunE.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kektormatch",
	Short: "Approximate attributed graph matching",
	Long: `kektormatch stores attributed directed graphs and finds approximate
correspondences between two node sets, using both node/edge properties and
the multi-hop connectivity around each node.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Storage.DataDir = dataDir
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		slog.SetDefault(cfg.Logger())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"Data directory, overrides storage.data_dir")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openEngine opens the local graph store described by cfg.
func openEngine() (*engine.Engine, error) {
	eng, err := engine.Open(cfg.EngineOptions())
	if err != nil {
		return nil, fmt.Errorf("open data directory %s: %w", cfg.Storage.DataDir, err)
	}
	return eng, nil
}

// parseIDs accepts "1,2,3" style lists, as collected by StringSlice flags.
func parseIDs(raw []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
