package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fleettools/squawk/missionstore"
	"github.com/fleettools/squawk/scheduler"
)

// ProcessLauncher implements scheduler.Launcher by re-executing this same
// binary with the hidden `agent-runner` subcommand: one process per unit
// of work, Start (not Run) so the scheduler doesn't block on completion.
type ProcessLauncher struct {
	BinaryPath     string
	CoordinatorURL string
	SortieTimeout  time.Duration
}

// Launch starts a detached specialist process for sortie and returns its
// *os.Process as the scheduler.Handle.
func (l *ProcessLauncher) Launch(ctx context.Context, sortie *missionstore.Sortie) (scheduler.Handle, error) {
	agentType := agentTypeForSortie(sortie)

	args := []string{"agent-runner",
		"--specialist-id", sortie.ID,
		"--agent-type", string(agentType),
		"--task", sortie.Description,
		"--coordinator-url", l.CoordinatorURL,
	}
	if l.SortieTimeout > 0 {
		args = append(args, "--timeout", l.SortieTimeout.String())
	}
	cmd := exec.CommandContext(ctx, l.BinaryPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch specialist for sortie %s: %w", sortie.ID, err)
	}
	return cmd.Process, nil
}

// agentTypeForSortie classifies a sortie's agent type from its title and
// description, the same substring-matching idiom as
// recovery.agentTypeFrom/conflict.resourceSeverity.
func agentTypeForSortie(sortie *missionstore.Sortie) string {
	text := strings.ToLower(sortie.Title + " " + sortie.Description)
	switch {
	case strings.Contains(text, "frontend") || strings.Contains(text, "ui") || strings.Contains(text, "react"):
		return "frontend"
	case strings.Contains(text, "test"):
		return "testing"
	case strings.Contains(text, "document"):
		return "documentation"
	case strings.Contains(text, "security") || strings.Contains(text, "audit"):
		return "security"
	case strings.Contains(text, "performance") || strings.Contains(text, "optimize"):
		return "performance"
	default:
		return "backend"
	}
}
