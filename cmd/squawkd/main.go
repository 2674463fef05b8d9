// Command squawkd is the squawk fleet coordinator daemon: a single binary
// that wires every component together (C1-C11), starts the five
// supervised background workers, and re-execs itself with the hidden
// agent-runner subcommand to spawn each specialist as its own OS process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleettools/squawk/agentrunner"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/config"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		natsURL    string
		dataDir    string
		port       int
	)

	rootCmd := &cobra.Command{
		Use:     "squawkd",
		Short:   "Autonomous specialist-worker fleet coordinator",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), configPath, natsURL, dataDir, port)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (default: embedded)")
	rootCmd.Flags().StringVar(&dataDir, "datadir", "", "directory for the database, checkpoints and logs")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP API port")

	rootCmd.AddCommand(newDecomposeCmd(&configPath, &natsURL, &dataDir, &port))
	rootCmd.AddCommand(newAgentRunnerCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(configPath, natsURL, dataDir string, port int) (*config.Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	loader := config.NewLoader(logger).WithFile(configPath)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if natsURL != "" {
		cfg.NATS.URL = natsURL
		cfg.NATS.Embedded = false
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runDaemon loads configuration, brings up every component and its
// background workers, then blocks until the context is cancelled
// (SIGINT/SIGTERM).
func runDaemon(ctx context.Context, configPath, natsURL, dataDir string, port int) error {
	cfg, err := loadConfig(configPath, natsURL, dataDir, port)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer app.Shutdown(10 * time.Second)

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	slog.Info("squawkd running", "port", cfg.Port, "datadir", cfg.DataDir)
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// newDecomposeCmd runs the decomposition pipeline for a single mission and
// exits: a one-shot analogue of runDaemon.
func newDecomposeCmd(configPath, natsURL, dataDir *string, port *int) *cobra.Command {
	var repoRoot string
	cmd := &cobra.Command{
		Use:   "decompose [task]",
		Short: "Decompose a task into a mission and its sorties, then schedule them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, *natsURL, *dataDir, *port)
			if err != nil {
				return err
			}

			app, err := NewApp(cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer app.Shutdown(10 * time.Second)

			if err := app.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start app: %w", err)
			}

			mission, err := app.SubmitMission(cmd.Context(), args[0], repoRoot)
			if err != nil {
				return fmt.Errorf("submit mission: %w", err)
			}

			fmt.Printf("mission %s created: %s (%d sorties)\n", mission.ID, mission.Title, mission.TotalSorties)
			return nil
		},
	}
	cmd.Flags().StringVar(&repoRoot, "repo", ".", "repository root to analyze")
	return cmd
}

// newAgentRunnerCmd is the hidden subcommand ProcessLauncher.Launch
// re-execs into: it runs a single specialist's agentrunner.Runner in this
// process and exits with its ExitCode, so the scheduler's one-process-per-
// sortie model works without a separate specialist binary.
func newAgentRunnerCmd() *cobra.Command {
	var (
		specialistID   string
		agentType      string
		task           string
		coordinatorURL string
		timeout        time.Duration
	)
	cmd := &cobra.Command{
		Use:    "agent-runner",
		Short:  "Run a single specialist agent (internal, spawned by squawkd)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("specialist_id", specialistID)
			sink := agentrunner.NewHTTPSink(coordinatorURL)
			clk := clock.System{}
			rng := clock.NewSystemRng(clk.Now().UnixNano())

			runner := agentrunner.NewRunner(specialistID, agentrunner.AgentType(agentType), sink, clk, rng, logger)
			code := runner.Run(cmd.Context(), task, timeout)
			if code != agentrunner.ExitOK {
				os.Exit(int(code))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&specialistID, "specialist-id", "", "specialist id this process is running as")
	cmd.Flags().StringVar(&agentType, "agent-type", "", "agent type (backend, frontend, testing, documentation, security, performance)")
	cmd.Flags().StringVar(&task, "task", "", "task description to execute")
	cmd.Flags().StringVar(&coordinatorURL, "coordinator-url", "", "base URL of the coordinator's HTTP API")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum duration before the runner self-terminates (0 = no timeout)")
	_ = cmd.MarkFlagRequired("specialist-id")
	_ = cmd.MarkFlagRequired("coordinator-url")
	return cmd
}
