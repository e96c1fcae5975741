package main

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	kmcp "github.com/sanonone/kektormatch/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP tool server over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	matchOpts, err := cfg.MatchOptions()
	if err != nil {
		return err
	}
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	srv, err := kmcp.NewMCPServer(eng, matchOpts, cfg.ClusterOptions())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	slog.Info("MCP server running on stdio", "data_dir", cfg.Storage.DataDir)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
