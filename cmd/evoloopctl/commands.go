package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"evoloop/pkg/evoloop"
)

type runOptions struct {
	problem        string
	size           int
	k              int
	m              int
	n              int
	co             int
	seed           int64
	workers        int
	maxGenerations int
	runID          string
	artifactsDir   string
	metricsAddr    string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a registered problem and persist the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.problem, "problem", "", "problem name (see problems)")
	flags.IntVar(&opts.size, "size", 0, "population size")
	flags.IntVarP(&opts.k, "replace", "k", 0, "slots replaced per generation")
	flags.IntVarP(&opts.m, "mutate", "m", 0, "survivors mutated per generation")
	flags.IntVarP(&opts.n, "fresh", "n", 0, "freshly generated individuals per generation")
	flags.IntVar(&opts.co, "co", 0, "crossover offspring per generation")
	flags.Int64Var(&opts.seed, "seed", 0, "random seed")
	flags.IntVar(&opts.workers, "workers", 0, "goroutines evaluating the initial population")
	flags.IntVar(&opts.maxGenerations, "max-generations", 0, "generation cap (0 uses the problem default)")
	flags.StringVar(&opts.runID, "run-id", "", "explicit run id (default: random UUID)")
	flags.StringVar(&opts.artifactsDir, "artifacts-dir", "", "write run artifacts under this directory")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func runRun(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	ctx := cmd.Context()
	cfg, err := root.load(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("problem") {
		cfg.Problem = opts.problem
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("max-generations") {
		cfg.MaxGenerations = opts.maxGenerations
	}
	if flags.Changed("artifacts-dir") {
		cfg.ArtifactsDir = opts.artifactsDir
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := root.client(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, cmd.ErrOrStderr())

	settings, err := resolveSettings(client, cfg.Problem, cfg.Settings, cmd, opts)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, client.MetricsHandler())
		if err != nil {
			return err
		}
		defer stop()
	}

	summary, runErr := client.Run(ctx, evoloop.RunRequest{
		RunID:          opts.runID,
		Problem:        cfg.Problem,
		Settings:       settings,
		Seed:           cfg.Seed,
		Workers:        cfg.Workers,
		MaxGenerations: cfg.MaxGenerations,
	})
	if runErr != nil && summary.RunID == "" {
		return runErr
	}

	out := cmd.OutOrStdout()
	if root.jsonOut {
		if err := writeJSON(out, summary); err != nil {
			return err
		}
		return runErr
	}
	fmt.Fprintf(out, "run_id=%s problem=%s status=%s generations=%s best=%.6f duration=%s\n",
		summary.RunID,
		summary.Problem,
		summary.Status,
		humanize.Comma(int64(summary.Generations)),
		summary.BestFitness,
		time.Duration(summary.DurationMS)*time.Millisecond,
	)
	if len(summary.Best) > 0 {
		fmt.Fprintf(out, "best_individual=%s\n", summary.Best)
	}
	if summary.ArtifactsDir != "" {
		fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
	}
	return runErr
}

// resolveSettings layers the settings flags over the configured settings,
// or over the problem defaults when none are configured.
func resolveSettings(client *evoloop.Client, name string, configured evoloop.Settings, cmd *cobra.Command, opts *runOptions) (evoloop.Settings, error) {
	flags := cmd.Flags()
	changed := flags.Changed("size") || flags.Changed("replace") || flags.Changed("mutate") || flags.Changed("fresh") || flags.Changed("co")
	if !changed {
		return configured, nil
	}

	base := configured
	if base == (evoloop.Settings{}) {
		p, err := client.Problem(name)
		if err != nil {
			return evoloop.Settings{}, err
		}
		base = p.Settings
	}
	if flags.Changed("size") {
		base.Size = opts.size
	}
	if flags.Changed("replace") {
		base.K = opts.k
	}
	if flags.Changed("mutate") {
		base.M = opts.m
	}
	if flags.Changed("fresh") {
		base.N = opts.n
	}
	if flags.Changed("co") {
		base.CO = opts.co
	}
	return base, base.Validate()
}

func serveMetrics(addr string, handler http.Handler) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newRunsCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			client, err := root.client(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer closeClient(client, cmd.ErrOrStderr())

			runs, err := client.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if root.jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "run_id=%s problem=%s status=%s generations=%s best=%.6f\n",
					r.RunID, r.Problem, r.Status, humanize.Comma(int64(r.Generations)), r.BestFitness)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	return cmd
}

func newShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one persisted run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			client, err := root.client(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer closeClient(client, cmd.ErrOrStderr())

			rec, err := client.Show(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if root.jsonOut {
				return writeJSON(out, rec)
			}
			fmt.Fprintf(out, "run_id=%s\n", rec.ID)
			fmt.Fprintf(out, "problem=%s\n", rec.Problem)
			fmt.Fprintf(out, "status=%s\n", rec.Status)
			fmt.Fprintf(out, "settings=size=%d k=%d m=%d n=%d co=%d\n", rec.Settings.Size, rec.Settings.K, rec.Settings.M, rec.Settings.N, rec.Settings.CO)
			fmt.Fprintf(out, "seed=%d workers=%d max_generations=%s\n", rec.Seed, rec.Workers, humanize.Comma(int64(rec.MaxGenerations)))
			fmt.Fprintf(out, "created=%s (%s)\n", rec.CreatedAt.Format(time.RFC3339), humanize.Time(rec.CreatedAt))
			fmt.Fprintf(out, "generations=%s best=%.6f\n", humanize.Comma(int64(rec.Generations)), rec.BestFitness)
			if len(rec.Best) > 0 {
				fmt.Fprintf(out, "best_individual=%s\n", rec.Best)
			}
			if rec.Error != "" {
				fmt.Fprintf(out, "error=%s\n", rec.Error)
			}
			return nil
		},
	}
}

func newDiagnosticsCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "diagnostics <run-id>",
		Short: "Print per-generation fitness diagnostics of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			client, err := root.client(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer closeClient(client, cmd.ErrOrStderr())

			diagnostics, err := client.Diagnostics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if limit > 0 && len(diagnostics) > limit {
				diagnostics = diagnostics[len(diagnostics)-limit:]
			}
			out := cmd.OutOrStdout()
			if root.jsonOut {
				return writeJSON(out, diagnostics)
			}
			if len(diagnostics) == 0 {
				fmt.Fprintln(out, "no diagnostics")
				return nil
			}
			for _, d := range diagnostics {
				fmt.Fprintf(out, "generation=%d best=%.6f mean=%.6f min=%.6f stddev=%.6f distinct=%d\n",
					d.Generation, d.BestFitness, d.MeanFitness, d.MinFitness, d.StdDevFitness, d.DistinctScores)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "print only the last N generations (<=0 for all)")
	return cmd
}

func newProblemsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List registered problems and their default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := evoloop.New(cmd.Context(), evoloop.Options{StoreKind: "memory"})
			if err != nil {
				return err
			}
			defer closeClient(client, cmd.ErrOrStderr())

			problems := client.Problems()
			out := cmd.OutOrStdout()
			if root.jsonOut {
				return writeJSON(out, problems)
			}
			for _, p := range problems {
				fmt.Fprintf(out, "%s\t%s\t%s max_generations=%s\n",
					p.Name, p.Description, p.Settings, humanize.Comma(int64(p.MaxGenerations)))
			}
			return nil
		},
	}
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		outDir       string
		artifactsDir string
	)
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Copy the artifacts of a run to another directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("artifacts-dir") {
				cfg.ArtifactsDir = artifactsDir
			}
			client, err := root.client(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer closeClient(client, cmd.ErrOrStderr())

			dir, err := client.Export(args[0], outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s to=%s\n", args[0], dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "exports", "destination directory")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "directory holding run artifacts")
	return cmd
}
