// Package cli — stop.go implements the "inslaunch stop" command.
//
// The stop command stops the running node containers of a launched plan
// in reverse plan order without removing them, so "inslaunch start" can
// bring the plan back.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/docker"
	"github.com/inslaunch/inslaunch/internal/model"
)

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a launched plan without removing it",
		Long: `Stop the running node containers of a launched plan, last node first.

The containers and the rendered parameter file are kept. Use "inslaunch
start" to start the plan again or "inslaunch down" to remove it.

Examples:
  inslaunch stop cv7_ins_ublox_f9p
  inslaunch stop --json field-test`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	return cmd
}

func runStop(ctx context.Context, w io.Writer, name string) error {
	// Step 1: Connect to Docker.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	// Step 2: Find the plan.
	plan, err := findPlan(ctx, cli, name)
	if err != nil {
		return err
	}

	// Step 3: Stop running containers, last node first.
	running := containersToStop(plan)
	for _, c := range running {
		logger.Info().Str("plan", name).Str("container", c.ContainerName).Msg("stopping node")
		if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to stop container %q", c.ContainerName), err)
		}
	}

	printLifecycleResult(w, name, "stopped", running)
	return nil
}

// containersToStop returns the plan's running containers in reverse plan
// order.
func containersToStop(plan *model.LaunchedPlan) []model.ContainerInfo {
	var out []model.ContainerInfo
	for i := len(plan.Containers) - 1; i >= 0; i-- {
		if plan.Containers[i].Status == "running" {
			out = append(out, plan.Containers[i])
		}
	}
	return out
}
