// Command ccvec serves and administers a contact-center transcript index.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ccvec/internal/config"
)

var (
	cfgFile  string
	logLevel string
	jsonOut  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ccvec",
	Short: "Vector search over contact-center transcripts",
	Long: `ccvec keeps a versioned vector index of call transcripts in blob storage
and answers similarity queries over it, filtered by CSAT, resolution and
sentiment.

Run "ccvec serve" for the HTTP API or use the subcommands directly.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")

	rootCmd.AddCommand(serveCmd, searchCmd, indexCmd, statsCmd, pruneCmd)
}

// loadApp loads the configuration and wires an app from it.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return newApp(ctx, cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
