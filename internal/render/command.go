package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/inslaunch/inslaunch/internal/model"
)

// Commands writes one shell command line per included node, in plan order.
func Commands(w io.Writer, plan *model.LaunchPlan) error {
	for i := range plan.Nodes {
		if _, err := fmt.Fprintln(w, NodeCommand(&plan.Nodes[i])); err != nil {
			return err
		}
	}
	return nil
}

// NodeCommand builds the shell command line that starts n with ros2 run:
//
//	ros2 run <pkg> <exe> [args...] --ros-args -r __node:=<name> -r __ns:=<ns>
//	    -r from:=to ... --params-file <file> -p name:=value ...
//
// Command-valued inline parameters are emitted as "name:=$(command)" inside
// double quotes, so the shell running the line performs the substitution.
// Every other word is single-quoted when it contains shell metacharacters.
func NodeCommand(n *model.NodeSpec) string {
	words := []string{"ros2", "run", ShellQuote(n.Package), ShellQuote(n.Executable)}
	for _, a := range n.Arguments {
		words = append(words, ShellQuote(a))
	}

	var rosArgs []string
	if n.Name != "" {
		rosArgs = append(rosArgs, "-r", ShellQuote("__node:="+n.Name))
	}
	if n.Namespace != "" {
		rosArgs = append(rosArgs, "-r", ShellQuote("__ns:="+qualifyNamespace(n.Namespace)))
	}
	for _, r := range n.Remaps {
		rosArgs = append(rosArgs, "-r", ShellQuote(r.String()))
	}
	for _, src := range n.Parameters {
		if src.File != "" {
			rosArgs = append(rosArgs, "--params-file", ShellQuote(src.File))
		}
		for _, p := range src.Inline {
			if p.FromCommand {
				rosArgs = append(rosArgs, "-p", commandSubstitution(p.Name, p.Value))
			} else {
				rosArgs = append(rosArgs, "-p", ShellQuote(p.Name+":="+p.Value))
			}
		}
	}

	if len(rosArgs) > 0 {
		words = append(words, "--ros-args")
		words = append(words, rosArgs...)
	}
	return strings.Join(words, " ")
}

// commandSubstitution renders name:=$(command) in double quotes. Characters
// that stay special inside double quotes are escaped in the name only; the
// command itself is meant to be interpreted by the shell.
func commandSubstitution(name, command string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`").Replace(name)
	return `"` + escaped + `:=$(` + command + `)"`
}

func qualifyNamespace(ns string) string {
	if strings.HasPrefix(ns, "/") {
		return ns
	}
	return "/" + ns
}

// ShellQuote returns s unchanged when it consists only of characters that
// are safe in a POSIX shell word, and single-quoted otherwise.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, unsafeShellRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellJoin quotes each word and joins them with spaces.
func ShellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = ShellQuote(w)
	}
	return strings.Join(quoted, " ")
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	switch r {
	case '_', '-', '.', '/', ':', '=', '@', '%', '+', ',':
		return false
	}
	return true
}
