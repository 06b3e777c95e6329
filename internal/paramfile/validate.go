package paramfile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValidationError is a single layout problem in a parameter file.
type ValidationError struct {
	// Path is the key path of the offending entry (e.g., "/ublox_f9p").
	Path string

	// Line is the 1-based line in the source, 0 if unknown.
	Line int

	// Message describes what is wrong.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parameter file: %s (line %d): %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parameter file: %s: %s", e.Path, e.Message)
}

// Validate checks that data follows the ROS 2 parameter file layout and
// returns every problem found (empty list = valid).
//
// Checks performed:
//   - the document is a mapping of node or namespace keys
//   - every leaf section holds a ros__parameters mapping and nothing else
//   - parameter names are not empty
//   - at least one node section exists
//
// A YAML syntax error is returned as a single ValidationError.
func Validate(data []byte) []ValidationError {
	root, err := parseRoot(data)
	if err != nil {
		return []ValidationError{{Path: "/", Message: err.Error()}}
	}
	if root == nil {
		return []ValidationError{{Path: "/", Message: "file is empty"}}
	}

	var errs []ValidationError
	sections := 0
	validateMapping(root, "", &errs, &sections)

	if sections == 0 && len(errs) == 0 {
		errs = append(errs, ValidationError{
			Path:    "/",
			Line:    root.Line,
			Message: "no node section with " + ParametersKey + " found",
		})
	}
	return errs
}

func validateMapping(m *yaml.Node, prefix string, errs *[]ValidationError, sections *int) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i], m.Content[i+1]
		path := join(prefix, key.Value)

		if key.Value == ParametersKey {
			// Only reachable at the top level: any nested mapping holding
			// this key is handled as a node section.
			*errs = append(*errs, ValidationError{
				Path:    path,
				Line:    key.Line,
				Message: ParametersKey + " must be nested under a node name",
			})
			continue
		}

		if val.Kind != yaml.MappingNode {
			*errs = append(*errs, ValidationError{
				Path:    path,
				Line:    val.Line,
				Message: "expected a mapping with " + ParametersKey,
			})
			continue
		}

		params := mappingValue(val, ParametersKey)
		if params == nil {
			if len(val.Content) == 0 {
				*errs = append(*errs, ValidationError{
					Path:    path,
					Line:    val.Line,
					Message: "empty section",
				})
				continue
			}
			validateMapping(val, path, errs, sections)
			continue
		}

		*sections++
		validateSection(val, params, path, errs)
	}
}

func validateSection(section, params *yaml.Node, path string, errs *[]ValidationError) {
	for i := 0; i+1 < len(section.Content); i += 2 {
		if k := section.Content[i]; k.Value != ParametersKey {
			*errs = append(*errs, ValidationError{
				Path:    path + "/" + k.Value,
				Line:    k.Line,
				Message: "unexpected key next to " + ParametersKey,
			})
		}
	}

	if params.Kind != yaml.MappingNode {
		// "ros__parameters:" with nothing under it parses as null, which ROS
		// accepts as an empty parameter set.
		if params.Kind == yaml.ScalarNode && params.Tag == "!!null" {
			return
		}
		*errs = append(*errs, ValidationError{
			Path:    path + "/" + ParametersKey,
			Line:    params.Line,
			Message: "must be a mapping of parameter names to values",
		})
		return
	}

	for i := 0; i+1 < len(params.Content); i += 2 {
		if k := params.Content[i]; k.Value == "" {
			*errs = append(*errs, ValidationError{
				Path:    path + "/" + ParametersKey,
				Line:    k.Line,
				Message: "empty parameter name",
			})
		}
	}
}
