// Package cli — params.go implements the "inslaunch params" command.
//
// The params command checks the parameter file shared by every node of the
// plan and prints it with $(var NAME) expressions replaced by the resolved
// launch arguments, which is what each node receives at start-up.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/model"
	"github.com/inslaunch/inslaunch/internal/paramfile"
)

// paramsFlags holds the flag values for the params command.
type paramsFlags struct {
	compose composeFlags

	// output is the destination file. Empty writes to stdout.
	output string
}

// NewParamsCommand creates the "params" cobra command.
func NewParamsCommand() *cobra.Command {
	flags := &paramsFlags{}

	cmd := &cobra.Command{
		Use:   "params [name:=value]...",
		Short: "Validate and render the shared parameter file",
		Long: `Validate the parameter file named by params_file and print it with
launch argument substitutions applied.

Nodes of the plan that have no section in the file (and no "/**" section)
are reported as warnings.

Examples:
  inslaunch params
  inslaunch params params_file:=/etc/robot/cv7.yml -o /tmp/cv7.rendered.yml`,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runParams(cmd.OutOrStdout(), args, flags)
		},
	}

	flags.compose.register(cmd)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the rendered file here instead of stdout")

	return cmd
}

func runParams(w io.Writer, pairs []string, flags *paramsFlags) error {
	// Step 1: Compose so params_file and every $(var ...) are resolved.
	plan, err := composeFromFlags(&flags.compose, pairs, composeOptions{})
	if err != nil {
		return err
	}

	// Step 2: Load, validate and render.
	source, rendered, err := renderPlanParams(plan)
	if err != nil {
		return err
	}

	// Step 3: Write.
	if flags.output == "" {
		_, err := w.Write(rendered)
		return err
	}
	if err := paramfile.Write(flags.output, rendered); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to write rendered parameter file", err)
	}
	VerboseLog("Rendered %s to %s", source, flags.output)
	return nil
}

// renderPlanParams loads the plan's params_file, validates it, and renders
// it against the plan's arguments. Nodes without a section are logged.
func renderPlanParams(plan *model.LaunchPlan) (string, []byte, error) {
	source, ok := plan.Argument("params_file")
	if !ok || source == "" {
		return "", nil, model.NewCLIError(model.ExitParamsFileError, "the plan declares no params_file")
	}

	data, err := paramfile.Load(source)
	if err != nil {
		return "", nil, err
	}

	if errs := paramfile.Validate(data); len(errs) > 0 {
		for i := range errs {
			logger.Error().Str("file", source).Int("line", errs[i].Line).Str("path", errs[i].Path).Msg(errs[i].Message)
		}
		return "", nil, model.WrapCLIError(model.ExitParamsFileError,
			fmt.Sprintf("invalid parameter file %s (%d problem(s))", source, len(errs)), &errs[0])
	}

	rendered := data
	if allowsSubstitutions(plan, source) {
		rendered, err = paramfile.Render(data, planLookup(plan))
		if err != nil {
			return "", nil, model.WrapCLIError(model.ExitParamsFileError, "failed to render "+source, err)
		}
	}

	declared, err := paramfile.NodeNames(rendered)
	if err != nil {
		return "", nil, model.WrapCLIError(model.ExitParamsFileError, "invalid parameter file "+source, err)
	}
	for _, name := range paramfile.MissingNodes(declared, nodeNames(plan)) {
		logger.Warn().Str("file", source).Str("node", name).Msg("no parameter section for node")
	}

	return source, rendered, nil
}

func allowsSubstitutions(plan *model.LaunchPlan, file string) bool {
	for _, n := range plan.Nodes {
		for _, src := range n.Parameters {
			if src.File == file && src.AllowSubstitutions {
				return true
			}
		}
	}
	return false
}

// nodeNames returns the namespaced display names of the plan's nodes.
func nodeNames(plan *model.LaunchPlan) []string {
	names := make([]string, 0, len(plan.Nodes))
	for _, n := range plan.Nodes {
		name := n.DisplayName()
		if ns := strings.Trim(n.Namespace, "/"); ns != "" {
			name = ns + "/" + name
		}
		names = append(names, name)
	}
	return names
}
