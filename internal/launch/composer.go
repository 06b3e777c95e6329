package launch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/inslaunch/inslaunch/internal/model"
	"github.com/inslaunch/inslaunch/internal/subst"
)

// ErrUndeclaredArgument is returned when an override names an argument the
// variant does not declare.
var ErrUndeclaredArgument = errors.New("undeclared launch argument")

// Options configures a Composer.
type Options struct {
	// Variant selects the launch description. Defaults to DefaultVariant.
	Variant string

	// ShareDir is the installed share directory of PackageName, used to
	// build the default parameter, URDF, and RViz paths.
	ShareDir string

	// Logger receives debug output about resolution and conditions.
	// Nil disables logging.
	Logger *zerolog.Logger

	// Env and LookPath back $(env ...) and $(find-exec ...). Nil uses the
	// process environment and PATH.
	Env      func(name string) (string, bool)
	LookPath func(name string) (string, error)
}

// Composer turns override sets into launch plans for one variant.
// A Composer is immutable and safe for concurrent use.
type Composer struct {
	desc     Description
	shareDir string
	logger   zerolog.Logger
	env      func(string) (string, bool)
	lookPath func(string) (string, error)
}

// NewComposer builds a Composer for opts.Variant.
func NewComposer(opts Options) (*Composer, error) {
	variant := opts.Variant
	if variant == "" {
		variant = DefaultVariant
	}

	desc, err := Describe(variant, opts.ShareDir)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("variant", variant).Logger()
	}

	return &Composer{
		desc:     desc,
		shareDir: opts.ShareDir,
		logger:   logger,
		env:      opts.Env,
		lookPath: opts.LookPath,
	}, nil
}

// Variant returns the name of the variant this Composer builds.
func (c *Composer) Variant() string {
	return c.desc.Variant
}

// Declarations returns a copy of the variant's argument declarations in
// declaration order.
func (c *Composer) Declarations() []model.LaunchArgument {
	out := make([]model.LaunchArgument, len(c.desc.Arguments))
	copy(out, c.desc.Arguments)
	return out
}

// Compose resolves overrides against the declared arguments and returns the
// launch plan.
//
// Resolution is override > default, nothing else. Override values are taken
// literally; defaults may reference earlier arguments through $(var ...).
// Each node condition is evaluated once, after every argument is resolved.
func (c *Composer) Compose(overrides map[string]string) (*model.LaunchPlan, error) {
	if err := c.checkDeclared(overrides); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(c.desc.Arguments))
	lookup := func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
	resolver := subst.Resolver{Vars: lookup, Env: c.env, LookPath: c.lookPath}

	plan := &model.LaunchPlan{
		Variant:   c.desc.Variant,
		ShareDir:  c.shareDir,
		Arguments: make([]model.ResolvedArgument, 0, len(c.desc.Arguments)),
	}

	for _, decl := range c.desc.Arguments {
		resolved := model.ResolvedArgument{LaunchArgument: decl}
		if v, ok := overrides[decl.Name]; ok {
			resolved.Value = v
			resolved.Source = model.SourceOverride
		} else {
			v, err := resolver.Expand(decl.Default)
			if err != nil {
				return nil, fmt.Errorf("resolve default of %q: %w", decl.Name, err)
			}
			resolved.Value = v
			resolved.Source = model.SourceDefault
		}
		values[decl.Name] = resolved.Value
		plan.Arguments = append(plan.Arguments, resolved)

		c.logger.Debug().
			Str("argument", decl.Name).
			Str("source", string(resolved.Source)).
			Msg("argument resolved")
	}

	for _, tpl := range c.desc.Nodes {
		node, err := instantiate(tpl, resolver)
		if err != nil {
			return nil, fmt.Errorf("node %s/%s: %w", tpl.Package, tpl.Executable, err)
		}

		if tpl.Condition != nil && !tpl.Condition.Evaluate(lookup) {
			reason := fmt.Sprintf("%s is %q, not %q",
				tpl.Condition.Argument, values[tpl.Condition.Argument], tpl.Condition.Equals)
			plan.Skipped = append(plan.Skipped, model.SkippedNode{Node: node, Reason: reason})
			c.logger.Debug().Str("node", node.DisplayName()).Str("reason", reason).Msg("node excluded")
			continue
		}

		plan.Nodes = append(plan.Nodes, node)
		c.logger.Debug().Str("node", node.DisplayName()).Msg("node included")
	}

	return plan, nil
}

// checkDeclared rejects override names the variant does not declare. All
// offending names are reported at once, sorted.
func (c *Composer) checkDeclared(overrides map[string]string) error {
	declared := make(map[string]bool, len(c.desc.Arguments))
	for _, a := range c.desc.Arguments {
		declared[a.Name] = true
	}

	var unknown []string
	for name := range overrides {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w for variant %s: %s", ErrUndeclaredArgument, c.desc.Variant, strings.Join(unknown, ", "))
}

// instantiate evaluates every expression field of a template.
func instantiate(tpl NodeTemplate, r subst.Resolver) (model.NodeSpec, error) {
	node := model.NodeSpec{
		Package:    tpl.Package,
		Executable: tpl.Executable,
		Name:       tpl.Name,
		Namespace:  tpl.Namespace,
		Output:     tpl.Output,
		Display:    tpl.Display,
	}

	if len(tpl.Remaps) > 0 {
		node.Remaps = make([]model.Remap, len(tpl.Remaps))
		copy(node.Remaps, tpl.Remaps)
	}

	if tpl.ParamsFile != "" || len(tpl.Inline) > 0 {
		src := model.ParameterSource{AllowSubstitutions: tpl.ParamsFile != ""}
		if tpl.ParamsFile != "" {
			file, err := r.Expand(tpl.ParamsFile)
			if err != nil {
				return model.NodeSpec{}, fmt.Errorf("parameter file: %w", err)
			}
			src.File = file
		}
		for _, p := range tpl.Inline {
			v, err := r.Expand(p.Value)
			if err != nil {
				return model.NodeSpec{}, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			src.Inline = append(src.Inline, model.InlineParameter{Name: p.Name, Value: v, FromCommand: p.FromCommand})
		}
		node.Parameters = []model.ParameterSource{src}
	}

	var err error
	if node.Arguments, err = expandAll(tpl.Arguments, r); err != nil {
		return model.NodeSpec{}, fmt.Errorf("arguments: %w", err)
	}
	if node.Devices, err = expandAll(tpl.Devices, r); err != nil {
		return model.NodeSpec{}, fmt.Errorf("devices: %w", err)
	}

	if tpl.Condition != nil {
		cond := *tpl.Condition
		node.Condition = &cond
	}

	return node, nil
}

func expandAll(exprs []string, r subst.Resolver) ([]string, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(exprs))
	for _, e := range exprs {
		v, err := r.Expand(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
