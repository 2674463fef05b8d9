package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var baseURL string

	rootCmd := &cobra.Command{
		Use:   "squawkctl",
		Short: "Command-line client for the squawk coordinator's HTTP API",
	}
	rootCmd.PersistentFlags().StringVar(&baseURL, "api-url", "http://localhost:8080/api/v1", "base URL of the coordinator's HTTP API")

	rootCmd.AddCommand(decomposeCmd(&baseURL))
	rootCmd.AddCommand(statusCmd(&baseURL))
	rootCmd.AddCommand(checkpointCmd(&baseURL))
	rootCmd.AddCommand(resumeCmd(&baseURL))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func decomposeCmd(baseURL *string) *cobra.Command {
	var repoRoot string
	cmd := &cobra.Command{
		Use:   "decompose [task]",
		Short: "Submit a task for decomposition into a mission and its sorties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewClient(*baseURL).Decompose(cmd.Context(), args[0], repoRoot)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&repoRoot, "repo", ".", "repository root to analyze")
	return cmd
}

func statusCmd(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [mission-id]",
		Short: "Fetch a mission's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mission, err := NewClient(*baseURL).MissionStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(mission)
		},
	}
}

func checkpointCmd(baseURL *string) *cobra.Command {
	var trigger string
	cmd := &cobra.Command{
		Use:   "checkpoint [mission-id]",
		Short: "Force a checkpoint for a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chk, err := NewClient(*baseURL).CreateCheckpoint(cmd.Context(), args[0], trigger)
			if err != nil {
				return err
			}
			return printJSON(chk)
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "manual", "checkpoint trigger reason")
	return cmd
}

func resumeCmd(baseURL *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "resume [checkpoint-id]",
		Short: "Resume a mission from a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := NewClient(*baseURL).Resume(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "proceed even if surfaced risks are present")
	return cmd
}
