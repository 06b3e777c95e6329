// Package cli — down.go implements the "inslaunch down" command.
//
// The down command stops and removes every container of a launched plan
// and deletes the plan's rendered parameter file. It prompts for
// confirmation unless --force is given. Use stop to keep the containers.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/config"
	"github.com/inslaunch/inslaunch/internal/docker"
	"github.com/inslaunch/inslaunch/internal/model"
)

// downFlags holds the flag values for the down command.
type downFlags struct {
	// force skips the confirmation prompt.
	force bool
}

// NewDownCommand creates the "down" cobra command.
func NewDownCommand() *cobra.Command {
	flags := &downFlags{}

	cmd := &cobra.Command{
		Use:   "down <name>",
		Short: "Stop and remove a launched plan",
		Long: `Stop every node container of a launched plan, remove the containers, and
delete the rendered parameter file.

Unless --force is specified, the command prompts for confirmation.

Examples:
  inslaunch down cv7_ins_ublox_f9p
  inslaunch down --force field-test`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDown(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "Remove without confirmation")

	return cmd
}

func runDown(ctx context.Context, in io.Reader, w io.Writer, name string, flags *downFlags) error {
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

	// Step 3: Confirm.
	if !flags.force {
		confirmed, err := promptConfirmation(in, w, plan)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	// Step 4: Stop in reverse start order, then remove.
	for _, c := range containersToStop(plan) {
		VerboseLog("Stopping container %s...", c.ContainerName)
		if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
			logger.Warn().Err(err).Str("container", c.ContainerName).Msg("stop failed, forcing removal")
		}
	}
	for i := len(plan.Containers) - 1; i >= 0; i-- {
		if err := docker.RemoveContainer(ctx, cli, plan.Containers[i].ContainerID, true); err != nil {
			return err
		}
	}

	// Step 5: Delete the plan's state directory.
	stateDir, err := config.ResolveStateDir(settings.StateDir, nil)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to resolve state directory", err)
	}
	planDir := filepath.Join(stateDir, name)
	if err := os.RemoveAll(planDir); err != nil {
		logger.Warn().Err(err).Str("dir", planDir).Msg("failed to remove plan state")
	}

	printDownResult(w, name, len(plan.Containers))
	return nil
}

// promptConfirmation asks the user to confirm removal and accepts "y" or
// "yes". A closed input counts as no.
func promptConfirmation(in io.Reader, w io.Writer, plan *model.LaunchedPlan) (bool, error) {
	fmt.Fprintf(w, "About to remove launched plan %q (%s):\n", plan.Name, plan.Variant)
	for _, c := range plan.Containers {
		fmt.Fprintf(w, "  - %s (%s)\n", c.ContainerName, c.Status)
	}
	fmt.Fprint(w, "\nContinue? [y/N] ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}
	if err := scanner.Err(); err != nil {
		return false, err
	}
	return false, nil
}

func printDownResult(w io.Writer, name string, containerCount int) {
	if IsJSONOutput() {
		_ = writeJSON(w, map[string]interface{}{
			"name":           name,
			"action":         "removed",
			"containerCount": containerCount,
		})
		return
	}
	fmt.Fprintf(w, "Removed launched plan %q\n", name)
	fmt.Fprintf(w, "  Removed %d containers\n", containerCount)
}
