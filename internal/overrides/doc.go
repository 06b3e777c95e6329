// Package overrides collects launch argument overrides from the command line
// and from override files.
//
// Overrides are a flat name -> string map. Command-line pairs use the ROS
// launch syntax "name:=value". Files may be written in any of the formats
// the sensor teams already keep their configuration in:
//
//   - YAML (.yaml, .yml), parsed with gopkg.in/yaml.v3
//   - JSON with comments (.json, .jsonc), stripped with github.com/tidwall/jsonc
//   - TOML (.toml), parsed with github.com/BurntSushi/toml
//   - HCL (.hcl), parsed with github.com/hashicorp/hcl/v2
//
// In every format only top-level scalar values are accepted. Numbers and
// booleans are converted to their literal text, so `ntrip_port = 2101` and
// `ntrip_port = "2101"` produce the same override.
//
// Merge combines several sources; later sources win. The CLI merges files in
// the order given and applies command-line pairs last.
package overrides
