// Package cli — compose.go holds the flags and helpers shared by every
// command that composes a launch plan (plan, params, up).
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/config"
	"github.com/inslaunch/inslaunch/internal/launch"
	"github.com/inslaunch/inslaunch/internal/model"
	"github.com/inslaunch/inslaunch/internal/overrides"
)

// composeFlags are the inputs of a composition.
type composeFlags struct {
	// variant overrides the settings file's variant.
	variant string

	// shareDir overrides the share directory lookup.
	shareDir string

	// files are override files, merged in order.
	files []string
}

func (f *composeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.variant, "variant", "",
		"Launch variant (default from settings, then "+launch.DefaultVariant+")")
	cmd.Flags().StringVar(&f.shareDir, "share-dir", "",
		"Share directory of "+launch.PackageName+" (default: settings, $INSLAUNCH_SHARE_DIR, $AMENT_PREFIX_PATH)")
	cmd.Flags().StringArrayVarP(&f.files, "file", "f", nil,
		"Override file (.yaml, .json, .jsonc, .toml, .hcl); repeatable, later files win")
}

// composeOptions tunes composeFromFlags for where the plan will run.
type composeOptions struct {
	// inContainer resolves $(find-exec ...) inside the runtime image rather
	// than on this host.
	inContainer bool
}

// composeFromFlags merges override files and name:=value pairs (pairs win)
// and composes the plan. Errors are CLIErrors with ExitInvalidArgument.
func composeFromFlags(f *composeFlags, pairs []string, opts composeOptions) (*model.LaunchPlan, error) {
	// Step 1: Parse command-line pairs first so typos fail fast.
	pairSet, err := overrides.ParsePairs(pairs)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidArgument, "invalid override", err)
	}

	// Step 2: Load override files in order.
	fileSet, err := overrides.LoadFiles(f.files)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidArgument, "invalid override file", err)
	}
	merged := overrides.Merge(fileSet, pairSet)
	VerboseLog("Collected %d override(s) from %d file(s) and %d pair(s)", len(merged), len(f.files), len(pairSet))

	// Step 3: Build the composer for the selected variant.
	variant := f.variant
	if variant == "" {
		variant = settings.Variant
	}
	shareDir := f.shareDir
	if shareDir == "" {
		shareDir = settings.ShareDir
	}
	shareDir = config.ResolveShareDir(shareDir, nil)
	VerboseLog("Using variant %s with share directory %s", variant, shareDir)

	copts := launch.Options{
		Variant:  variant,
		ShareDir: shareDir,
		Logger:   &logger,
	}
	if opts.inContainer {
		copts.LookPath = func(name string) (string, error) { return name, nil }
	}

	composer, err := launch.NewComposer(copts)
	if err != nil {
		return nil, classifyComposeError(err)
	}

	// Step 4: Compose.
	plan, err := composer.Compose(merged)
	if err != nil {
		return nil, classifyComposeError(err)
	}
	return plan, nil
}

// classifyComposeError maps composer errors to exit codes: unknown variants,
// undeclared arguments, and bad defaults are the caller's input problem.
func classifyComposeError(err error) error {
	switch {
	case errors.Is(err, launch.ErrUnknownVariant):
		return model.WrapCLIError(model.ExitInvalidArgument,
			"unknown variant (run 'inslaunch variants')", err)
	case errors.Is(err, launch.ErrUndeclaredArgument):
		return model.WrapCLIError(model.ExitInvalidArgument,
			"undeclared launch argument (run 'inslaunch args')", err)
	default:
		return model.WrapCLIError(model.ExitInvalidArgument, "failed to compose launch plan", err)
	}
}

// planLookup exposes the plan's resolved arguments to $(var ...) expansion.
func planLookup(plan *model.LaunchPlan) func(string) (string, bool) {
	return plan.Argument
}
