package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/medwiki-tools/editor-stats/internal/config"
	"github.com/medwiki-tools/editor-stats/internal/dbmap"
	"github.com/medwiki-tools/editor-stats/internal/exitcodes"
	"github.com/medwiki-tools/editor-stats/internal/logging"
	"github.com/medwiki-tools/editor-stats/internal/mwclient"
	"github.com/medwiki-tools/editor-stats/internal/notify"
	"github.com/medwiki-tools/editor-stats/internal/replica"
	"github.com/medwiki-tools/editor-stats/internal/report"
	"github.com/medwiki-tools/editor-stats/internal/state"
	"github.com/medwiki-tools/editor-stats/internal/workflow"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "editor-stats",
		Usage:   "Aggregate per-editor contribution statistics for medical articles across language wikis",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "state-file",
				Usage: "Use YAML state file instead of SQLite (for cron/headless)",
			},
			&cli.BoolFlag{
				Name:  "output-json",
				Usage: "Output JSON status to stdout on completion (logs go to stderr)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Value: "info",
				Usage: "Log verbosity level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.ParseLevel(c.String("verbosity"))
			if err != nil {
				return err
			}
			logging.SetLevel(level)

			logging.SetFormat(c.String("log-format"))

			// Keep stdout clean for machine-readable output
			if c.Bool("output-json") {
				logging.SetOutput(os.Stderr)
			}

			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the full pipeline, resuming prior progress",
				Action: runAll,
				Flags: append(analysisFlags(),
					&cli.BoolFlag{
						Name:  "fresh",
						Usage: "Discard prior progress and start over",
					},
				),
			},
			{
				Name:      "run-step",
				Usage:     "Run a single pipeline step (1-4)",
				ArgsUsage: "<step>",
				Action:    runStep,
				Flags:     analysisFlags(),
			},
			{
				Name:   "status",
				Usage:  "Show pipeline status",
				Action: showStatus,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output status as JSON",
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Discard progress from a step onward (default: everything)",
				Action: resetState,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "from-step",
						Usage: "First step to reset (0 resets all progress)",
					},
				},
			},
			{
				Name:   "history",
				Usage:  "List recent analysis runs",
				Action: showHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum number of runs to list",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitcodes.FromError(err))
	}
}

func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "year",
			Usage: "Year to analyze (default: from config)",
		},
		&cli.StringSliceFlag{
			Name:  "languages",
			Usage: "Restrict processing to these language codes",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Disable the progress bar",
		},
	}
}

func runAll(c *cli.Context) error {
	orch, cleanup, err := buildOrchestrator(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	runErr := orch.RunAll(ctx, c.Bool("fresh"))

	if c.Bool("output-json") {
		if err := printStatusJSON(orch); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not output status: %v\n", err)
		}
	}
	return runErr
}

func runStep(c *cli.Context) error {
	if c.NArg() != 1 {
		return exitcodes.NewExitError(fmt.Errorf("usage: run-step <step> (1-4)"), exitcodes.ConfigError)
	}
	step, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return exitcodes.NewExitError(fmt.Errorf("invalid step %q", c.Args().First()), exitcodes.ConfigError)
	}

	orch, cleanup, err := buildOrchestrator(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	runErr := orch.RunStep(ctx, step)

	if c.Bool("output-json") {
		if err := printStatusJSON(orch); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not output status: %v\n", err)
		}
	}
	return runErr
}

func showStatus(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, _, cleanup, err := openStore(c, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := store.Load()
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.StateError)
	}
	status := workflow.BuildStatus(st, cfg.Upload.Enabled)

	if c.Bool("json") {
		out, err := status.JSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(status.Render())
	return nil
}

func resetState(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, _, cleanup, err := openStore(c, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fromStep := c.Int("from-step")
	if fromStep != 0 && !workflow.ValidStep(fromStep) {
		return exitcodes.NewExitError(fmt.Errorf("invalid step %d", fromStep), exitcodes.ConfigError)
	}
	st, err := store.Reset(fromStep)
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.StateError)
	}

	if fromStep == 0 {
		fmt.Println("All progress discarded")
	} else {
		fmt.Printf("Progress from step %d discarded; resume point is now step %d (%s)\n",
			fromStep, st.ResumePoint(), workflow.StepName(st.ResumePoint()))
	}
	return nil
}

func showHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.String("state-file") != "" {
		return fmt.Errorf("run history requires the SQLite state backend")
	}
	store, err := state.NewSQLiteStore(cfg.Output.DataDir)
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.StateError)
	}
	defer store.Close()

	runs, err := store.ListRuns(c.Int("limit"))
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.StateError)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Printf("%-10s %-20s %-20s %-22s %s\n", "Run ID", "Started", "Completed", "Status", "Summary")
	for _, r := range runs {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-10s %-20s %-20s %-22s %s\n",
			r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), completed, r.Status, r.Summary)
	}
	return nil
}

// buildOrchestrator wires the full pipeline from configuration.
func buildOrchestrator(c *cli.Context) (*workflow.Orchestrator, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	applyOverrides(c, cfg)

	creds, err := config.LoadCredentials(cfg.Replica.CredentialFile)
	if err != nil {
		return nil, nil, exitcodes.NewExitError(err, exitcodes.ConfigError)
	}

	store, history, cleanup, err := openStore(c, cfg)
	if err != nil {
		return nil, nil, err
	}

	exec := replica.NewExecutor(cfg.Replica, creds)
	mapper := dbmap.New(exec, cfg.Replica, cfg.Output.ResultsDir())
	files := report.NewFiles(cfg.Output)
	notifier := notify.New(&cfg.Slack)

	var uploader workflow.PageWriter
	if cfg.Upload.Enabled {
		client, err := mwclient.New(cfg.Upload)
		if err != nil {
			cleanup()
			return nil, nil, exitcodes.NewExitError(err, exitcodes.ConfigError)
		}
		uploader = client
	}

	orch := workflow.New(cfg, store, exec, mapper, files, notifier, uploader, history)
	orch.ShowProgress = !c.Bool("no-progress") && !c.Bool("output-json")
	return orch, cleanup, nil
}

// openStore picks the state backend: SQLite by default, YAML when a state
// file is requested.
func openStore(c *cli.Context, cfg *config.Config) (state.Store, workflow.RunHistory, func(), error) {
	if path := c.String("state-file"); path != "" {
		store, err := state.NewFileStore(path)
		if err != nil {
			return nil, nil, nil, exitcodes.NewExitError(err, exitcodes.StateError)
		}
		return store, nil, func() {}, nil
	}

	store, err := state.NewSQLiteStore(cfg.Output.DataDir)
	if err != nil {
		return nil, nil, nil, exitcodes.NewExitError(err, exitcodes.StateError)
	}
	return store, store, func() { store.Close() }, nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if c.IsSet("config") {
			return nil, exitcodes.NewExitError(fmt.Errorf("configuration file not found: %s", path), exitcodes.ConfigError)
		}
		// No config file is fine; everything has a default.
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, exitcodes.NewExitError(err, exitcodes.ConfigError)
	}
	return cfg, nil
}

func applyOverrides(c *cli.Context, cfg *config.Config) {
	if c.IsSet("year") {
		cfg.Analysis.Year = c.String("year")
	}
	if c.IsSet("languages") {
		cfg.Analysis.Languages = c.StringSlice("languages")
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so an
// interrupted run checkpoints cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted. Saving checkpoint...")
		cancel()
		// A second signal kills immediately.
		<-sigCh
		os.Exit(exitcodes.Cancelled)
	}()

	return ctx, cancel
}

func printStatusJSON(orch *workflow.Orchestrator) error {
	status, err := orch.Status()
	if err != nil {
		return err
	}
	out, err := status.JSON()
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
