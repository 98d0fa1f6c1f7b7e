// Package main implements the compressd daemon and CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/compressd/internal/config"
	"github.com/fyrsmithlabs/compressd/internal/ingest"
	"github.com/fyrsmithlabs/compressd/internal/logging"
	"github.com/fyrsmithlabs/compressd/internal/pipeline"
	"github.com/fyrsmithlabs/compressd/internal/report"
	"github.com/fyrsmithlabs/compressd/internal/server"
)

var (
	configPath string
	inputPath  string
	outputPath string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "compressd",
	Short: "Hierarchical document compression daemon",
	Long: `compressd compresses long page-tagged documents into chunk, section,
and document level summaries with guaranteed retention of critical content
(exceptions, risks, contradictions, quantities and dates).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// runCmd compresses one document and writes the report.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compress a document and write the report",
	Long: `Compress a plain-text document into a report.

Pages are separated by form feeds, paragraphs by blank lines.

Examples:
  # Compress a file to a report
  compressd run --input manual.txt --output report.json

  # Read from stdin, write to stdout
  cat manual.txt | compressd run`,
	RunE: runRun,
}

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compression HTTP server",
	Long: `Start the HTTP server exposing POST /v1/compress, GET /health, and
GET /metrics. The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the compressd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input document (default: stdin)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output report path (default: stdout)")
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var in io.Reader = cmd.InOrStdin()
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	paragraphs, err := ingest.ReadDocument(in)
	if err != nil {
		return err
	}

	pipe, err := pipeline.New(cfg.Pipeline, cfg.Chunker, cfg.Summarizer, logger)
	if err != nil {
		return err
	}

	rep, err := pipe.Run(cmd.Context(), paragraphs)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return report.Write(out, rep)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	srv, err := server.New(*cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
