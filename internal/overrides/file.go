package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/tidwall/jsonc"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnsupportedFormat is returned for file extensions with no decoder.
	ErrUnsupportedFormat = errors.New("unsupported override file format")

	// ErrNotScalar is returned when an override value is a list, a table,
	// or null.
	ErrNotScalar = errors.New("override value must be a scalar")
)

// Format identifies an override file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatHCL  Format = "hcl"
)

// DetectFormat maps a file extension to its Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: %s (supported: .yaml, .yml, .json, .jsonc, .toml, .hcl)", ErrUnsupportedFormat, path)
	}
}

// LoadFile reads an override file, choosing the decoder by extension.
func LoadFile(path string) (map[string]string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var out map[string]string
	switch format {
	case FormatTOML:
		out, err = loadTOML(path)
	case FormatHCL:
		out, err = loadHCL(path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read override file: %w", err)
		}
		if format == FormatYAML {
			out, err = decodeYAML(data)
		} else {
			out, err = decodeJSON(data)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("override file %s: %w", path, err)
	}
	return out, nil
}

// LoadFiles loads every file in order and merges them; later files win.
func LoadFiles(paths []string) (map[string]string, error) {
	sets := make([]map[string]string, 0, len(paths))
	for _, p := range paths {
		set, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return Merge(sets...), nil
}

// decodeYAML walks the node tree instead of unmarshalling into interface{}
// so scalars keep their literal spelling ("1.0" stays "1.0").
func decodeYAML(data []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	out := make(map[string]string)
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return out, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping of argument names to values")
	}

	// Mapping content alternates key, value.
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind == yaml.AliasNode && val.Alias != nil {
			val = val.Alias
		}
		if val.Kind != yaml.ScalarNode || val.Tag == "!!null" {
			return nil, fmt.Errorf("%w: %s (line %d)", ErrNotScalar, key.Value, val.Line)
		}
		out[key.Value] = val.Value
	}
	return out, nil
}

func decodeJSON(data []byte) (map[string]string, error) {
	clean := jsonc.ToJSON(data)
	out := make(map[string]string)
	if len(bytes.TrimSpace(clean)) == 0 {
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(clean, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	for name, msg := range raw {
		msg = bytes.TrimSpace(msg)
		switch {
		case len(msg) == 0, bytes.Equal(msg, []byte("null")), msg[0] == '{', msg[0] == '[':
			return nil, fmt.Errorf("%w: %s", ErrNotScalar, name)
		case msg[0] == '"':
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return nil, fmt.Errorf("value of %s: %w", name, err)
			}
			out[name] = s
		default:
			// Numbers and booleans keep their JSON spelling.
			out[name] = string(msg)
		}
	}
	return out, nil
}

func loadTOML(path string) (map[string]string, error) {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	out := make(map[string]string, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			out[name] = val
		case bool:
			out[name] = strconv.FormatBool(val)
		case int64:
			out[name] = strconv.FormatInt(val, 10)
		case float64:
			out[name] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("%w: %s", ErrNotScalar, name)
		}
	}
	return out, nil
}

// loadHCL accepts a body of plain attributes:
//
//	ntrip      = true
//	ntrip_port = 2101
//
// Blocks and references to variables are rejected.
func loadHCL(path string) (map[string]string, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	out := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("value of %s: %w", name, diags)
		}
		if val.IsNull() || !val.IsKnown() || !val.Type().IsPrimitiveType() {
			return nil, fmt.Errorf("%w: %s", ErrNotScalar, name)
		}
		str, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("value of %s: %w", name, err)
		}
		out[name] = str.AsString()
	}
	return out, nil
}
