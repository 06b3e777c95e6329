// Package cli — plan.go implements the "inslaunch plan" command.
//
// The plan command resolves launch arguments against override files and
// name:=value pairs, evaluates node conditions, and prints the resulting
// launch plan. Nothing is started.
package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/model"
	"github.com/inslaunch/inslaunch/internal/render"
)

// planFlags holds the flag values for the plan command.
type planFlags struct {
	compose composeFlags

	// format is yaml, json, text, or commands. Empty picks json with
	// --json and text otherwise.
	format string

	showSecrets bool
}

// NewPlanCommand creates the "plan" cobra command.
func NewPlanCommand() *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan [name:=value]...",
		Short: "Compose and print a launch plan",
		Long: `Compose a launch plan and print it.

Arguments not overridden keep their declared defaults. The NTRIP client is
included only when ntrip resolves to exactly "true", and RViz only when rviz
resolves to exactly "true".

Examples:
  inslaunch plan
  inslaunch plan ntrip:=true ntrip_host:=caster.example.com
  inslaunch plan -f site.toml -f robot.yaml rviz:=false --format commands
  inslaunch plan --json`,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.OutOrStdout(), args, flags)
		},
	}

	flags.compose.register(cmd)
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: yaml, json, text, commands")
	cmd.Flags().BoolVar(&flags.showSecrets, "show-secrets", false, "Do not mask secret argument values")

	return cmd
}

func runPlan(w io.Writer, pairs []string, flags *planFlags) error {
	// Step 1: Validate the output format before doing any work.
	format, err := planFormat(flags.format)
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidArgument, "invalid --format", err)
	}

	// Step 2: Compose.
	plan, err := composeFromFlags(&flags.compose, pairs, composeOptions{})
	if err != nil {
		return err
	}
	VerboseLog("Plan has %d node(s), %d skipped", len(plan.Nodes), len(plan.Skipped))

	// Step 3: Render.
	return render.Plan(w, plan, format, render.Options{ShowSecrets: flags.showSecrets})
}

func planFormat(s string) (render.Format, error) {
	if s == "" {
		if IsJSONOutput() {
			return render.FormatJSON, nil
		}
		return render.FormatText, nil
	}
	return render.ParseFormat(s)
}
