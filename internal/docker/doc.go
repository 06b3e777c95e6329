// Package docker hands launch plans to Docker, which acts as the process
// supervisor for the nodes of a plan.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container labels that record plan and node metadata (labels are the
//     only state store; there is no local database)
//   - Starting one container per node with host networking and the
//     node's serial devices passed through
//   - Listing, grouping, stopping, and removing the containers of a plan
//
// Supervision itself (restarts, exit codes, log collection) stays with
// Docker. The package uses github.com/docker/docker/client with API
// version negotiation for queries, and the docker CLI for `run`.
package docker
