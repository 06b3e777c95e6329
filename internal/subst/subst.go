// Package subst evaluates ROS 2 launch substitution expressions embedded in
// strings.
//
// Supported forms:
//
//	$(var NAME)            resolved launch argument
//	$(env NAME)            environment variable, error when unset
//	$(env NAME DEFAULT)    environment variable with fallback
//	$(find-exec NAME)      absolute path of an executable on PATH
//
// Expressions may nest. Text outside expressions is copied unchanged.
package subst

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	// ErrUndefinedVariable is returned when $(var NAME) names an argument
	// that has not been resolved.
	ErrUndefinedVariable = errors.New("undefined launch argument")

	// ErrUndefinedEnv is returned when $(env NAME) has no default and the
	// variable is unset.
	ErrUndefinedEnv = errors.New("undefined environment variable")

	// ErrUnknownSubstitution is returned for expression kinds this package
	// does not implement.
	ErrUnknownSubstitution = errors.New("unknown substitution")

	// ErrMalformed is returned for unterminated or empty expressions.
	ErrMalformed = errors.New("malformed substitution")
)

// Resolver expands substitution expressions. The zero value resolves
// nothing but environment and PATH lookups; set Vars to expose launch
// arguments.
type Resolver struct {
	// Vars looks up resolved launch arguments for $(var ...).
	Vars func(name string) (string, bool)

	// Env looks up environment variables. Defaults to os.LookupEnv.
	Env func(name string) (string, bool)

	// LookPath finds executables. Defaults to exec.LookPath.
	LookPath func(name string) (string, error)

	// VarsOnly restricts expansion to $(var ...). Other expressions are
	// copied through verbatim, which matches how parameter files are
	// treated when substitutions are allowed.
	VarsOnly bool
}

// Expand returns s with every substitution expression evaluated.
//
// Expressions may nest: inner expressions are expanded first and their
// values become part of the enclosing expression, so
// "$(env ROBOT $(var robot_name))" falls back to the robot_name argument.
// In VarsOnly mode an enclosing non-var expression is copied with its inner
// $(var ...) expressions already replaced.
func (r Resolver) Expand(s string) (string, error) {
	var out strings.Builder
	rest := s

	for {
		start := strings.Index(rest, "$(")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:start])

		end := closingParen(rest, start+2)
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated expression in %q", ErrMalformed, s)
		}

		body, err := r.Expand(rest[start+2 : end])
		if err != nil {
			return "", err
		}

		value, handled, err := r.evaluate(body)
		if err != nil {
			return "", err
		}
		if handled {
			out.WriteString(value)
		} else {
			out.WriteString("$(" + body + ")")
		}
		rest = rest[end+1:]
	}
}

// closingParen returns the index of the ")" closing the expression whose
// body starts at from, skipping nested "$(...)" pairs, or -1.
func closingParen(s string, from int) int {
	depth := 0
	for i := from; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "$("):
			depth++
			i++
		case s[i] == ')':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// evaluate resolves a single expression body (the text between "$(" and
// ")"). handled is false when the expression should be copied verbatim.
func (r Resolver) evaluate(body string) (value string, handled bool, err error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", false, fmt.Errorf("%w: empty expression", ErrMalformed)
	}

	kind, args := fields[0], fields[1:]
	if r.VarsOnly && kind != "var" {
		return "", false, nil
	}

	switch kind {
	case "var":
		if len(args) != 1 {
			return "", false, fmt.Errorf("%w: $(var) takes exactly one name, got %q", ErrMalformed, body)
		}
		if r.Vars != nil {
			if v, ok := r.Vars(args[0]); ok {
				return v, true, nil
			}
		}
		return "", false, fmt.Errorf("%w: %s", ErrUndefinedVariable, args[0])

	case "env":
		if len(args) < 1 || len(args) > 2 {
			return "", false, fmt.Errorf("%w: $(env) takes a name and optional default, got %q", ErrMalformed, body)
		}
		lookup := r.Env
		if lookup == nil {
			lookup = os.LookupEnv
		}
		if v, ok := lookup(args[0]); ok {
			return v, true, nil
		}
		if len(args) == 2 {
			return args[1], true, nil
		}
		return "", false, fmt.Errorf("%w: %s", ErrUndefinedEnv, args[0])

	case "find-exec":
		if len(args) != 1 {
			return "", false, fmt.Errorf("%w: $(find-exec) takes exactly one name, got %q", ErrMalformed, body)
		}
		lookPath := r.LookPath
		if lookPath == nil {
			lookPath = exec.LookPath
		}
		// The executable usually lives in the runtime image, not on the
		// host composing the plan, so a miss keeps the bare name.
		if p, lookErr := lookPath(args[0]); lookErr == nil {
			return p, true, nil
		}
		return args[0], true, nil

	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnknownSubstitution, kind)
	}
}
