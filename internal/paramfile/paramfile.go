// Package paramfile handles the ROS 2 parameter file shared by every node of
// a launch plan.
//
// A parameter file is YAML keyed by node name, with the parameters of each
// node under a "ros__parameters" mapping:
//
//	microstrain_inertial_driver:
//	  ros__parameters:
//	    port: $(var microstrain_port)
//	/**:
//	  ros__parameters:
//	    use_sim_time: false
//
// Node keys may be nested under namespace keys, and "/**" matches every
// node. When substitutions are allowed, $(var NAME) expressions in the file
// text are replaced with resolved launch argument values before the file is
// handed to a node. Other expression kinds are left for the runtime.
//
// The source file is never modified. Rendered output is written to a new
// path chosen by the caller.
package paramfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inslaunch/inslaunch/internal/model"
	"github.com/inslaunch/inslaunch/internal/subst"
	"gopkg.in/yaml.v3"
)

// ParametersKey is the mapping key that holds a node's parameters.
const ParametersKey = "ros__parameters"

// Wildcard matches every node in every namespace.
const Wildcard = "/**"

// Load reads a parameter file.
//
// Returns a CLIError with ExitParamsFileError if the file does not exist.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitParamsFileError,
				fmt.Sprintf("parameter file not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	return data, nil
}

// Render replaces every $(var NAME) in data with the value returned by
// lookup. Other substitution kinds are copied unchanged. An undefined name
// is an error.
func Render(data []byte, lookup func(name string) (string, bool)) ([]byte, error) {
	r := subst.Resolver{Vars: lookup, VarsOnly: true}
	out, err := r.Expand(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to render parameter file: %w", err)
	}
	return []byte(out), nil
}

// Write saves rendered parameter data, creating parent directories as
// needed. Rendered files may hold credentials (ntrip_password), so the file
// is readable by its owner only, including when it already existed.
func Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write parameter file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict parameter file permissions: %w", err)
	}
	return nil
}

// NodeNames returns the fully qualified node keys declared in data, in file
// order. Namespace nesting is flattened: "ns: {imu: {ros__parameters: …}}"
// yields "/ns/imu". The wildcard is returned as "/**".
func NodeNames(data []byte) ([]string, error) {
	root, err := parseRoot(data)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}

	var names []string
	walkNodes(root, "", func(name string, _ *yaml.Node) {
		names = append(names, name)
	})
	return names, nil
}

// MissingNodes returns the entries of nodes that no section of the file
// applies to. A section applies when its key is the wildcard or equals the
// node's fully qualified name.
func MissingNodes(declared, nodes []string) []string {
	have := make(map[string]bool, len(declared))
	for _, d := range declared {
		if d == Wildcard {
			return nil
		}
		have[d] = true
	}

	var missing []string
	for _, n := range nodes {
		if !have[qualify(n)] {
			missing = append(missing, n)
		}
	}
	return missing
}

// parseRoot returns the top-level mapping of data, or nil for an empty
// document.
func parseRoot(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parameter file: top level must be a mapping of node names")
	}
	return root, nil
}

// walkNodes calls fn for every mapping that directly holds ParametersKey.
// Mappings without it are treated as namespaces and descended into.
func walkNodes(m *yaml.Node, prefix string, fn func(name string, section *yaml.Node)) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i], m.Content[i+1]
		name := join(prefix, key.Value)
		if val.Kind != yaml.MappingNode {
			continue
		}
		if mappingValue(val, ParametersKey) != nil {
			fn(name, val)
			continue
		}
		walkNodes(val, name, fn)
	}
}

// mappingValue returns the value for key in mapping m, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func join(prefix, key string) string {
	if key == Wildcard {
		return Wildcard
	}
	key = strings.Trim(key, "/")
	if prefix == "" {
		return "/" + key
	}
	return prefix + "/" + key
}

// qualify adds the leading slash ROS uses for fully qualified names.
func qualify(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}
