// Package cli — variants.go implements "inslaunch variants" and
// "inslaunch args", the two read-only commands that describe what can be
// composed.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/config"
	"github.com/inslaunch/inslaunch/internal/launch"
	"github.com/inslaunch/inslaunch/internal/model"
	"github.com/inslaunch/inslaunch/internal/render"
)

// NewVariantsCommand creates the "variants" cobra command.
func NewVariantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the available launch variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVariants(cmd.OutOrStdout(), launch.Variants())
		},
	}
}

func printVariants(w io.Writer, infos []launch.VariantInfo) error {
	if IsJSONOutput() {
		return writeJSON(w, map[string]interface{}{"variants": infos})
	}
	for _, v := range infos {
		marker := " "
		if v.Name == settings.Variant {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-30s %s\n", marker, v.Name, v.Summary)
	}
	return nil
}

// argsFlags holds the flag values for the args command.
type argsFlags struct {
	variant     string
	shareDir    string
	showSecrets bool
}

// NewArgsCommand creates the "args" cobra command.
func NewArgsCommand() *cobra.Command {
	flags := &argsFlags{}

	cmd := &cobra.Command{
		Use:   "args",
		Short: "Show the launch arguments a variant declares",
		Long: `Show the launch arguments a variant declares, in declaration order, with
their defaults and descriptions. Defaults may reference earlier arguments
with $(var NAME); they are shown unevaluated.

Examples:
  inslaunch args
  inslaunch args --variant cv7_ins_ublox_f9p_headless --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArgs(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.variant, "variant", "", "Launch variant")
	cmd.Flags().StringVar(&flags.shareDir, "share-dir", "", "Share directory of "+launch.PackageName)
	cmd.Flags().BoolVar(&flags.showSecrets, "show-secrets", false, "Do not mask secret defaults")

	return cmd
}

func runArgs(w io.Writer, flags *argsFlags) error {
	variant := flags.variant
	if variant == "" {
		variant = settings.Variant
	}
	shareDir := flags.shareDir
	if shareDir == "" {
		shareDir = settings.ShareDir
	}

	desc, err := launch.Describe(variant, config.ResolveShareDir(shareDir, nil))
	if err != nil {
		return classifyComposeError(err)
	}

	decls := make([]model.LaunchArgument, len(desc.Arguments))
	copy(decls, desc.Arguments)
	if !flags.showSecrets {
		for i := range decls {
			if decls[i].Secret {
				decls[i].Default = render.MaskedValue
			}
		}
	}

	if IsJSONOutput() {
		return writeJSON(w, map[string]interface{}{
			"variant":   desc.Variant,
			"arguments": decls,
		})
	}

	fmt.Fprintf(w, "%-28s %-50s %s\n", "NAME", "DEFAULT", "DESCRIPTION")
	for _, a := range decls {
		fmt.Fprintf(w, "%-28s %-50s %s\n", a.Name, a.Default, a.Description)
	}
	return nil
}
