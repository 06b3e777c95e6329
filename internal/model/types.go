// Package model defines the domain types for the inslaunch CLI.
//
// The types mirror the vocabulary of a ROS 2 launch description: declared
// arguments, nodes with remaps and parameter sources, and conditions that
// gate whether a node is started at all.
package model

import (
	"fmt"
	"strings"
)

// OutputMode controls where a node's console output is sent by the
// process supervisor.
type OutputMode string

const (
	// OutputScreen forwards stdout/stderr to the launching terminal.
	OutputScreen OutputMode = "screen"

	// OutputLog sends output only to the supervisor's log files.
	OutputLog OutputMode = "log"
)

// String returns the string representation of OutputMode.
func (m OutputMode) String() string {
	return string(m)
}

// IsValid checks whether the OutputMode value is one of the
// predefined modes.
func (m OutputMode) IsValid() bool {
	switch m {
	case OutputScreen, OutputLog:
		return true
	default:
		return false
	}
}

// ParseOutputMode converts a string to an OutputMode.
// Returns an error if the string does not match any valid mode.
func ParseOutputMode(s string) (OutputMode, error) {
	mode := OutputMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid output mode: %q (valid: screen, log)", s)
	}
	return mode, nil
}

// ValueSource records where a resolved argument value came from.
// Resolution has exactly two precedence levels: an explicit override
// beats the declared default.
type ValueSource string

const (
	// SourceDefault means no override was supplied for the argument.
	SourceDefault ValueSource = "default"

	// SourceOverride means the caller supplied the value explicitly.
	SourceOverride ValueSource = "override"
)

// LaunchArgument is a named input declared once per launch unit.
type LaunchArgument struct {
	// Name is unique within a launch unit (e.g., "ntrip_port").
	Name string `json:"name" yaml:"name"`

	// Default is used when the caller supplies no override. It may contain
	// substitution expressions such as "$(var robot_urdf_file)" that are
	// evaluated against arguments declared before it.
	Default string `json:"default" yaml:"default"`

	// Description is the human-readable help text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Secret marks values that should be masked in human-facing output.
	Secret bool `json:"secret,omitempty" yaml:"secret,omitempty"`

	// File marks values that are paths of files the nodes read.
	File bool `json:"file,omitempty" yaml:"file,omitempty"`
}

// ResolvedArgument is a LaunchArgument paired with its final value.
// It is immutable once the composer returns it.
type ResolvedArgument struct {
	LaunchArgument `yaml:",inline"`

	// Value is the resolved string value.
	Value string `json:"value" yaml:"value"`

	// Source records whether Value came from an override or the default.
	Source ValueSource `json:"source" yaml:"source"`
}

// Remap renames a topic from the name a node declares to the name used
// at runtime.
type Remap struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// String formats the remap the way ROS command lines expect: "from:=to".
func (r Remap) String() string {
	return r.From + ":=" + r.To
}

// InlineParameter is a single key/value parameter passed directly to a node
// instead of through the parameter file.
type InlineParameter struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`

	// FromCommand means Value is a command line whose stdout becomes the
	// parameter value when the node is started (e.g., running xacro to
	// produce a robot description).
	FromCommand bool `json:"fromCommand,omitempty" yaml:"fromCommand,omitempty"`
}

// ParameterSource describes where a node reads its parameters from.
type ParameterSource struct {
	// File is the resolved path of a ROS 2 parameter YAML file.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// AllowSubstitutions permits $(var ...) expressions inside File to be
	// evaluated against the resolved launch arguments.
	AllowSubstitutions bool `json:"allowSubstitutions,omitempty" yaml:"allowSubstitutions,omitempty"`

	// Inline holds parameters applied on top of File.
	Inline []InlineParameter `json:"inline,omitempty" yaml:"inline,omitempty"`
}

// Condition gates inclusion of a node on the resolved value of one argument.
// The comparison is a literal string match: "True" does not equal "true".
type Condition struct {
	Argument string `json:"argument" yaml:"argument"`
	Equals   string `json:"equals" yaml:"equals"`
}

// Evaluate reports whether the condition holds for the given value lookup.
// A missing argument never satisfies a condition.
func (c Condition) Evaluate(lookup func(name string) (string, bool)) bool {
	v, ok := lookup(c.Argument)
	if !ok {
		return false
	}
	return v == c.Equals
}

// String returns a readable form such as "ntrip == true".
func (c Condition) String() string {
	return fmt.Sprintf("%s == %s", c.Argument, c.Equals)
}

// NodeSpec is a fully resolved process-launch directive for one external
// executable.
type NodeSpec struct {
	// Package is the ROS package that ships the executable.
	Package string `json:"package" yaml:"package"`

	// Executable is the program name inside Package.
	Executable string `json:"executable" yaml:"executable"`

	// Name is the node instance name. Empty keeps the executable's own name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Namespace is the node namespace. Empty means the root namespace.
	Namespace string `json:"namespace" yaml:"namespace"`

	// Output selects where console output goes.
	Output OutputMode `json:"output,omitempty" yaml:"output,omitempty"`

	// Remaps are applied in order.
	Remaps []Remap `json:"remaps,omitempty" yaml:"remaps,omitempty"`

	// Parameters lists the parameter sources for the node.
	Parameters []ParameterSource `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Arguments are positional command-line arguments for the executable.
	Arguments []string `json:"arguments,omitempty" yaml:"arguments,omitempty"`

	// Devices are host device paths the node opens (serial ports).
	Devices []string `json:"devices,omitempty" yaml:"devices,omitempty"`

	// Display is set for nodes that need an X display (rviz2).
	Display bool `json:"display,omitempty" yaml:"display,omitempty"`

	// Condition, if set, was evaluated by the composer.
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// DisplayName returns the instance name, falling back to the executable.
func (n *NodeSpec) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Executable
}

// SkippedNode records a node whose condition did not hold.
type SkippedNode struct {
	Node   NodeSpec `json:"node" yaml:"node"`
	Reason string   `json:"reason" yaml:"reason"`
}

// LaunchPlan is the composer's output: resolved arguments in declaration
// order followed by the nodes to start. Condition evaluation has already
// happened; every node in Nodes is meant to be started.
type LaunchPlan struct {
	// Variant names the launch description the plan was composed from.
	Variant string `json:"variant" yaml:"variant"`

	// ShareDir is the share directory default paths were built from.
	ShareDir string `json:"shareDir,omitempty" yaml:"shareDir,omitempty"`

	// Arguments holds every declared argument with its resolved value.
	Arguments []ResolvedArgument `json:"arguments" yaml:"arguments"`

	// Nodes are the included nodes, in declaration order.
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`

	// Skipped are the nodes excluded by their condition.
	Skipped []SkippedNode `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Argument returns the resolved value of the named argument.
func (p *LaunchPlan) Argument(name string) (string, bool) {
	for _, a := range p.Arguments {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Node returns the included node whose display name matches name.
func (p *LaunchPlan) Node(name string) (*NodeSpec, bool) {
	for i := range p.Nodes {
		if p.Nodes[i].DisplayName() == name {
			return &p.Nodes[i], true
		}
	}
	return nil, false
}

// HasNode reports whether a node with the given display name is included.
func (p *LaunchPlan) HasNode(name string) bool {
	_, ok := p.Node(name)
	return ok
}

// ParameterFiles returns the distinct parameter files referenced by the
// included nodes, in first-seen order.
func (p *LaunchPlan) ParameterFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, n := range p.Nodes {
		for _, src := range n.Parameters {
			if src.File == "" || seen[src.File] {
				continue
			}
			seen[src.File] = true
			files = append(files, src.File)
		}
	}
	return files
}

// ExitCode defines standard CLI exit codes. These codes allow scripts to
// programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidArgument indicates an undeclared argument, a malformed
	// override, or an unknown variant.
	ExitInvalidArgument ExitCode = 2

	// ExitParamsFileError indicates the parameter file could not be read,
	// rendered, or validated.
	ExitParamsFileError ExitCode = 3

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 4

	// ExitPlanNotFound indicates no launched plan has the requested name.
	ExitPlanNotFound ExitCode = 5

	// ExitUserCancelled indicates the user cancelled an interactive prompt.
	ExitUserCancelled ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
