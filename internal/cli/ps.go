// Package cli — ps.go implements the "inslaunch ps" command.
//
// The ps command lists launched plans by querying Docker for containers
// labelled "inslaunch.managed-by=inslaunch", grouped by plan name.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/docker"
	"github.com/inslaunch/inslaunch/internal/model"
)

// psFlags holds the flag values for the ps command.
type psFlags struct {
	// status is running, stopped, partial, or all.
	status string
}

// NewPsCommand creates the "ps" cobra command.
func NewPsCommand() *cobra.Command {
	flags := &psFlags{}

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List launched plans",
		Long: `List the plans started with "inslaunch up" and the state of their nodes.

A plan is running when every node container runs, stopped when none does,
and partial otherwise (typically a node that exited after start-up).

Examples:
  inslaunch ps
  inslaunch ps --status partial
  inslaunch ps --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPs(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.status, "status", "all",
		"Filter by status: running, stopped, partial, all")

	return cmd
}

func runPs(ctx context.Context, w io.Writer, flags *psFlags) error {
	// Step 1: Validate the --status flag value.
	if flags.status != "all" {
		if _, err := model.ParsePlanStatus(flags.status); err != nil {
			return model.WrapCLIError(model.ExitInvalidArgument, "invalid --status", err)
		}
	}

	// Step 2: Connect to Docker.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	// Step 3: List and group managed containers.
	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	VerboseLog("Found %d managed containers", len(containers))

	plans := collectPlans(docker.GroupContainersByPlan(containers), flags.status)

	// Step 4: Output.
	printPsResult(w, plans)
	return nil
}

// collectPlans builds launched plans from grouped containers, keeps those
// matching status ("all" keeps every plan), and sorts them by name. Groups
// with unreadable labels are skipped with a warning.
func collectPlans(groups map[string][]model.ContainerInfo, status string) []*model.LaunchedPlan {
	var plans []*model.LaunchedPlan
	for name, group := range groups {
		plan, err := docker.BuildLaunchedPlan(name, group)
		if err != nil {
			logger.Warn().Err(err).Str("plan", name).Msg("skipping plan")
			continue
		}
		if status != "all" && plan.Status.String() != status {
			continue
		}
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans
}

func printPsResult(w io.Writer, plans []*model.LaunchedPlan) {
	if IsJSONOutput() {
		if plans == nil {
			plans = []*model.LaunchedPlan{}
		}
		_ = writeJSON(w, map[string]interface{}{"plans": plans})
		return
	}

	if len(plans) == 0 {
		fmt.Fprintln(w, "No launched plans found.")
		return
	}

	fmt.Fprintf(w, "%-20s %-28s %-10s %-8s %s\n", "NAME", "VARIANT", "STATUS", "NODES", "CREATED")
	for _, p := range plans {
		fmt.Fprintf(w, "%-20s %-28s %-10s %-8s %s\n",
			p.Name,
			p.Variant,
			p.Status.String(),
			FormatNodeCounts(p.Containers),
			p.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
		fmt.Fprintf(w, "  %s\n", FormatNodeStates(p.Containers))
	}
}

// FormatNodeCounts returns "running/total" for a plan's containers.
func FormatNodeCounts(containers []model.ContainerInfo) string {
	running := 0
	for _, c := range containers {
		if c.Status == "running" {
			running++
		}
	}
	return fmt.Sprintf("%d/%d", running, len(containers))
}

// FormatNodeStates lists node=state pairs in plan order, or "-" when there
// are no containers.
//
//	microstrain_inertial_driver=running ublox_f9p=exited
func FormatNodeStates(containers []model.ContainerInfo) string {
	if len(containers) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(containers))
	for _, c := range containers {
		parts = append(parts, c.Node+"="+c.Status)
	}
	return strings.Join(parts, " ")
}
