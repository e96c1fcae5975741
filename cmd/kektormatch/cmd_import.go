package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sanonone/kektormatch/pkg/loader"
	"github.com/spf13/cobra"
)

var importFormat string

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a graph script or class hierarchy CSV into the data directory",
	Long: `Load nodes and edges into the local data directory.

Formats:
  script  NODE/EDGE lines, e.g. NODE 1 :Site name=hq
  csv     Name,Parent,Description class hierarchy

The format defaults to csv for *.csv files and script otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "",
		"Input format: script or csv")
}

func runImport(cmd *cobra.Command, args []string) error {
	format := importFormat
	if format == "" {
		format = "script"
		if strings.EqualFold(filepath.Ext(args[0]), ".csv") {
			format = "csv"
		}
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	var stats loader.Stats
	switch format {
	case "script":
		stats, err = loader.ImportScript(ctx, f, eng)
	case "csv":
		stats, err = loader.ImportCSV(ctx, f, eng, loader.DefaultCSVConfig())
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if perr := printJSON(cmd.OutOrStdout(), stats); perr != nil && err == nil {
		err = perr
	}
	return err
}
