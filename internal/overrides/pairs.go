package overrides

import (
	"errors"
	"fmt"
	"strings"
)

// PairSeparator separates name and value in a command-line override.
const PairSeparator = ":="

// ErrMalformedPair is returned when a command-line override is not of the
// form "name:=value".
var ErrMalformedPair = errors.New("malformed override, expected name:=value")

// ParsePair splits a single "name:=value" override. The value may be empty
// and may itself contain ":=".
func ParsePair(arg string) (name, value string, err error) {
	name, value, found := strings.Cut(arg, PairSeparator)
	if !found {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedPair, arg)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("%w: empty name in %q", ErrMalformedPair, arg)
	}
	return name, value, nil
}

// ParsePairs parses a list of "name:=value" overrides. A name given more
// than once keeps its last value.
func ParsePairs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, err := ParsePair(arg)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

// Merge combines override sets. Later sets win on conflicting names.
// The inputs are not modified.
func Merge(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}
