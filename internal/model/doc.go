// Package model defines the domain types and value objects for the
// inslaunch CLI.
//
// This package contains pure data structures with no external dependencies.
// A LaunchPlan is the only output of the composer: resolved arguments in
// declaration order followed by the nodes that survived condition
// evaluation. Plans are never persisted; the docker backend records just
// enough of them as container labels to list and tear them down later.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
