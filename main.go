package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	catalog  string
	logLevel string
	vars     map[string]string
}

func (o *options) experiments() ([]Experiment, error) {
	if o.catalog == "" {
		return Experiments(), nil
	}
	return LoadCatalog(o.catalog, o.vars)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pqbench",
		Short:         "pqbench runs pqserver experiments",
		Long:          "A CLI tool for listing, validating and running the pqserver experiment catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel != "" {
				return SetLogLevel(opts.logLevel)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.catalog, "catalog", StringEnv("PQ_CATALOG", ""), "HCL catalog file (built-in catalog when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	root.PersistentFlags().StringToStringVar(&opts.vars, "var", nil, "catalog variable override (name=value)")

	root.AddCommand(newListCmd(opts), newShowCmd(opts), newValidateCmd(opts), newDumpCmd(opts), newRunCmd(opts))
	return root
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List experiments and their definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			experiments, err := opts.experiments()
			if err != nil {
				return err
			}
			for _, experiment := range experiments {
				fmt.Fprintln(cmd.OutOrStdout(), experiment.Name)
				for _, def := range experiment.Defs {
					fmt.Fprintf(cmd.OutOrStdout(), "  %v (part=%v db=%v writearound=%v)\n", def.Name, def.Part, def.DbType, def.DbWritearound)
				}
			}
			return nil
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show EXPERIMENT [DEFINITION]",
		Short: "Show the commands of an experiment",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			experiments, err := opts.experiments()
			if err != nil {
				return err
			}
			experiment, ok := FindExperiment(experiments, args[0])
			if !ok {
				return fmt.Errorf("unknown experiment: %v", args[0])
			}
			defs := experiment.Defs
			if len(args) == 2 {
				def, ok := experiment.Definition(args[1])
				if !ok {
					return fmt.Errorf("unknown definition %v in experiment %v", args[1], experiment.Name)
				}
				defs = []Definition{def}
			}
			for _, def := range defs {
				fmt.Fprintf(cmd.OutOrStdout(), "%v/%v\n", experiment.Name, def.Name)
				for _, phase := range Phases {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-8v %v\n", phase, def.Command(phase))
				}
			}
			return nil
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the experiment catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			experiments, err := opts.experiments()
			if err != nil {
				return err
			}
			if err := ValidateCatalog(experiments); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog is valid: %v experiments\n", len(experiments))
			return nil
		},
	}
}

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the experiment catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			experiments, err := opts.experiments()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(experiments, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	var filter Filter
	var store bool
	benchmark := Benchmark{
		Dir:          StringEnv("PQ_DIR", "."),
		Attempts:     IntEnv("PQ_ATTEMPTS", 1),
		StartupDelay: DurationEnv("PQ_STARTUP_DELAY", 2*time.Second),
		StopGrace:    DurationEnv("PQ_STOP_GRACE", 10*time.Second),
		ClearCaches:  BoolEnv("PQ_CLEAR_CACHES", false),
	}
	storage := &Storage{
		OrgName:   StringEnv("TURSO_ORG_NAME", ""),
		GroupName: StringEnv("TURSO_GROUP_NAME", "pqbench"),
		ApiToken:  StringEnv("TURSO_API_TOKEN", ""),
		AuthToken: StringEnv("TURSO_AUTH_TOKEN", ""),
	}
	results := StringEnv("TURSO_DB_NAME", "")

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run experiment definitions against pqserver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			experiments, err := opts.experiments()
			if err != nil {
				return err
			}
			system := &System{benchmark: benchmark, results: results}
			if store {
				if err := storage.Check(results); err != nil {
					return err
				}
				system.storage = storage
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return system.Run(ctx, experiments, filter)
		},
	}
	cmd.Flags().StringVar(&filter.Experiment, "experiment", "", "run only this experiment")
	cmd.Flags().StringVar(&filter.Definition, "definition", "", "run only this definition")
	cmd.Flags().StringVar(&benchmark.Dir, "dir", benchmark.Dir, "working directory for pqserver commands")
	cmd.Flags().IntVar(&benchmark.Attempts, "attempts", benchmark.Attempts, "attempts per definition")
	cmd.Flags().DurationVar(&benchmark.StartupDelay, "startup-delay", benchmark.StartupDelay, "time to wait for servers to come up")
	cmd.Flags().DurationVar(&benchmark.StopGrace, "stop-grace", benchmark.StopGrace, "time to wait for servers to exit after SIGINT")
	cmd.Flags().BoolVar(&benchmark.ClearCaches, "clear-caches", benchmark.ClearCaches, "drop OS caches before every attempt")
	cmd.Flags().BoolVar(&store, "store", storage.AuthToken != "", "store results in a Turso database")
	cmd.Flags().StringVar(&results, "results-db", results, "existing results database or file: path (created when empty)")
	return cmd
}

// configureEnv loads env files and re-applies LOG_LEVEL, which the logger
// read before the files were loaded.
func configureEnv(files ...string) error {
	if err := LoadEnv(files...); err != nil {
		return err
	}
	if level, ok := os.LookupEnv("LOG_LEVEL"); ok {
		return SetLogLevel(level)
	}
	return nil
}

func main() {
	if err := configureEnv(".env"); err != nil {
		Logger.Fatalf("failed to load .env: %v", err)
	}
	defer Logger.Sync()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		Logger.Errorf("%v", err)
		os.Exit(1)
	}
}
