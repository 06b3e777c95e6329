// Package render serializes launch plans for people and for tools.
//
// Four formats are supported:
//   - YAML: the full plan, with a generated-file header
//   - JSON: the full plan, indented
//   - Text: a compact summary of arguments, nodes, and skipped nodes
//   - Commands: one "ros2 run" shell line per included node
//
// Secret arguments are masked in YAML, JSON and Text unless
// Options.ShowSecrets is set. The command lines never carry argument
// values that the nodes do not receive, so they need no masking.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/inslaunch/inslaunch/internal/model"
	"gopkg.in/yaml.v3"
)

// Format selects an output representation.
type Format string

const (
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatCommands Format = "commands"
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatYAML, FormatJSON, FormatText, FormatCommands:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (valid: yaml, json, text, commands)", s)
	}
}

// MaskedValue replaces secret argument values in human-facing output.
const MaskedValue = "********"

// Options controls rendering.
type Options struct {
	// ShowSecrets disables masking of secret argument values.
	ShowSecrets bool
}

// Plan writes plan to w in the given format.
func Plan(w io.Writer, plan *model.LaunchPlan, format Format, opts Options) error {
	switch format {
	case FormatYAML:
		return YAML(w, plan, opts)
	case FormatJSON:
		return JSON(w, plan, opts)
	case FormatText:
		return Text(w, plan, opts)
	case FormatCommands:
		return Commands(w, plan)
	default:
		return fmt.Errorf("invalid format: %q", format)
	}
}

// Masked returns a shallow copy of plan whose secret arguments carry
// MaskedValue. The input plan is not modified.
func Masked(plan *model.LaunchPlan) *model.LaunchPlan {
	out := *plan
	out.Arguments = make([]model.ResolvedArgument, len(plan.Arguments))
	for i, a := range plan.Arguments {
		if a.Secret {
			a.Value = MaskedValue
			if a.Default != "" {
				a.Default = MaskedValue
			}
		}
		out.Arguments[i] = a
	}
	return &out
}

func prepare(plan *model.LaunchPlan, opts Options) *model.LaunchPlan {
	if opts.ShowSecrets {
		return plan
	}
	return Masked(plan)
}

// YAML writes the plan as YAML with a header comment.
func YAML(w io.Writer, plan *model.LaunchPlan, opts Options) error {
	data, err := yaml.Marshal(prepare(plan, opts))
	if err != nil {
		return fmt.Errorf("failed to serialize launch plan YAML: %w", err)
	}

	header := fmt.Sprintf("# Launch plan for variant %q, generated by inslaunch\n", plan.Variant)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// JSON writes the plan as indented JSON.
func JSON(w io.Writer, plan *model.LaunchPlan, opts Options) error {
	p := prepare(plan, opts)

	// Empty slices instead of nil so the output shows [] rather than null.
	if p.Nodes == nil || p.Arguments == nil {
		cp := *p
		if cp.Nodes == nil {
			cp.Nodes = []model.NodeSpec{}
		}
		if cp.Arguments == nil {
			cp.Arguments = []model.ResolvedArgument{}
		}
		p = &cp
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize launch plan JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Text writes a human-readable summary:
//
//	Variant: cv7_ins_ublox_f9p
//
//	ARGUMENT              VALUE            SOURCE
//	microstrain_port      /dev/ttyUSB0     override
//	...
//
//	NODES
//	  microstrain_inertial_driver  microstrain_inertial_driver/microstrain_inertial_driver_node  [screen]
//	    params: /opt/ros/humble/share/.../cv7_ins_ublox_f9p.yml
//	...
//
//	SKIPPED
//	  ntrip_client  ntrip is "false", not "true"
func Text(w io.Writer, plan *model.LaunchPlan, opts Options) error {
	p := prepare(plan, opts)
	var b strings.Builder

	fmt.Fprintf(&b, "Variant: %s\n\n", p.Variant)

	fmt.Fprintf(&b, "%-28s %-40s %s\n", "ARGUMENT", "VALUE", "SOURCE")
	for _, a := range p.Arguments {
		fmt.Fprintf(&b, "%-28s %-40s %s\n", a.Name, displayValue(a.Value), a.Source)
	}

	b.WriteString("\nNODES\n")
	if len(p.Nodes) == 0 {
		b.WriteString("  (none)\n")
	}
	for i := range p.Nodes {
		writeNodeText(&b, &p.Nodes[i])
	}

	if len(p.Skipped) > 0 {
		b.WriteString("\nSKIPPED\n")
		for i := range p.Skipped {
			s := &p.Skipped[i]
			fmt.Fprintf(&b, "  %-28s %s\n", s.Node.DisplayName(), s.Reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeNodeText(b *strings.Builder, n *model.NodeSpec) {
	output := n.Output
	if output == "" {
		output = model.OutputScreen
	}
	fmt.Fprintf(b, "  %-28s %s/%s [%s]\n", n.DisplayName(), n.Package, n.Executable, output)

	if n.Namespace != "" {
		fmt.Fprintf(b, "    namespace: %s\n", n.Namespace)
	}
	for _, src := range n.Parameters {
		if src.File != "" {
			fmt.Fprintf(b, "    params: %s\n", src.File)
		}
		for _, p := range src.Inline {
			if p.FromCommand {
				fmt.Fprintf(b, "    param: %s := $(%s)\n", p.Name, p.Value)
			} else {
				fmt.Fprintf(b, "    param: %s := %s\n", p.Name, p.Value)
			}
		}
	}
	for _, r := range n.Remaps {
		fmt.Fprintf(b, "    remap: %s\n", r.String())
	}
	if len(n.Arguments) > 0 {
		fmt.Fprintf(b, "    args: %s\n", strings.Join(n.Arguments, " "))
	}
	for _, d := range n.Devices {
		fmt.Fprintf(b, "    device: %s\n", d)
	}
	if n.Condition != nil {
		fmt.Fprintf(b, "    if: %s\n", n.Condition.String())
	}
}

func displayValue(v string) string {
	if v == "" {
		return `""`
	}
	return v
}
