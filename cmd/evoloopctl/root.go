package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"evoloop/internal/config"
	"evoloop/pkg/evoloop"
)

type rootOptions struct {
	configPath string
	storeKind  string
	dbPath     string
	logLevel   string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "evoloopctl",
		Short:         "Run and inspect evolutionary loop experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML or JSON run configuration file")
	flags.StringVar(&opts.storeKind, "store", "", "store backend: memory|sqlite|badger")
	flags.StringVar(&opts.dbPath, "db-path", "", "sqlite database file or badger directory")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")
	flags.BoolVar(&opts.jsonOut, "json", false, "emit JSON output")

	cmd.AddCommand(
		newRunCmd(opts),
		newRunsCmd(opts),
		newShowCmd(opts),
		newDiagnosticsCmd(opts),
		newProblemsCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// load merges the config file and environment with any persistent flags
// set on the command line.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Kind = o.storeKind
	}
	if flags.Changed("db-path") {
		cfg.Store.Path = o.dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) client(ctx context.Context, cmd *cobra.Command, cfg config.Config) (*evoloop.Client, error) {
	return evoloop.New(ctx, evoloop.Options{
		StoreKind:    cfg.Store.Kind,
		DBPath:       cfg.Store.Path,
		ArtifactsDir: cfg.ArtifactsDir,
		Logger:       newLogger(cmd.ErrOrStderr(), cfg.LogLevel),
	})
}

// newLogger writes text to terminals and JSON everywhere else.
func newLogger(w io.Writer, level string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(level)}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func closeClient(c *evoloop.Client, w io.Writer) {
	if err := c.Close(); err != nil {
		fmt.Fprintf(w, "close store: %v\n", err)
	}
}
