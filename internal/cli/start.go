// Package cli — start.go implements the "inslaunch start" command.
//
// The start command restarts the stopped node containers of a launched
// plan, in plan order, so drivers come up before the nodes that consume
// their topics. Containers that are already running are left alone.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/docker"
	"github.com/inslaunch/inslaunch/internal/model"
)

// NewStartCommand creates the "start" cobra command.
func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start the stopped nodes of a launched plan",
		Long: `Start every stopped node container of a plan created with "inslaunch up".

Containers are started in plan order. The rendered parameter file from the
original "up" is reused; run "inslaunch down" and "inslaunch up" again to
change arguments.

Examples:
  inslaunch start cv7_ins_ublox_f9p
  inslaunch start --json field-test`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	return cmd
}

func runStart(ctx context.Context, w io.Writer, name string) error {
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

	// Step 3: Start what is not running, in plan order.
	pending := containersToStart(plan)
	for _, c := range pending {
		logger.Info().Str("plan", name).Str("container", c.ContainerName).Msg("starting node")
		if err := docker.StartContainer(ctx, cli, c.ContainerID); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to start container %q", c.ContainerName), err)
		}
	}

	printLifecycleResult(w, name, "started", pending)
	return nil
}

// findPlan looks up a launched plan by name. A name with no containers is
// reported as ExitPlanNotFound.
func findPlan(ctx context.Context, cli *docker.Client, name string) (*model.LaunchedPlan, error) {
	containers, err := docker.ListPlanContainers(ctx, cli, name)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, model.NewCLIError(model.ExitPlanNotFound,
			fmt.Sprintf("launched plan %q not found (run 'inslaunch ps')", name))
	}
	plan, err := docker.BuildLaunchedPlan(name, containers)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to read plan labels", err)
	}
	VerboseLog("Found plan %q with %d containers", name, len(plan.Containers))
	return plan, nil
}

// containersToStart returns the plan's containers that are not running, in
// plan order.
func containersToStart(plan *model.LaunchedPlan) []model.ContainerInfo {
	var out []model.ContainerInfo
	for _, c := range plan.Containers {
		if c.Status != "running" {
			out = append(out, c)
		}
	}
	return out
}

// printLifecycleResult reports the containers a start or stop acted on.
func printLifecycleResult(w io.Writer, name, action string, containers []model.ContainerInfo) {
	names := make([]string, 0, len(containers))
	for _, c := range containers {
		names = append(names, c.ContainerName)
	}

	if IsJSONOutput() {
		_ = writeJSON(w, map[string]interface{}{
			"name":       name,
			"action":     action,
			"containers": names,
		})
		return
	}

	if len(names) == 0 {
		fmt.Fprintf(w, "Plan %q: nothing to do\n", name)
		return
	}
	fmt.Fprintf(w, "Plan %q: %s %d container(s)\n", name, action, len(names))
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", n)
	}
}
