package model

import (
	"fmt"
	"time"
)

// PlanStatus is the aggregate state of a plan handed to the container
// supervisor.
type PlanStatus string

const (
	// PlanRunning means every node container is running.
	PlanRunning PlanStatus = "running"

	// PlanStopped means no node container is running.
	PlanStopped PlanStatus = "stopped"

	// PlanPartial means some node containers are running and some are not,
	// usually because a node exited after start-up.
	PlanPartial PlanStatus = "partial"
)

// String returns the string representation of PlanStatus.
func (s PlanStatus) String() string {
	return string(s)
}

// ParsePlanStatus converts a string to a PlanStatus.
func ParsePlanStatus(s string) (PlanStatus, error) {
	switch st := PlanStatus(s); st {
	case PlanRunning, PlanStopped, PlanPartial:
		return st, nil
	default:
		return "", fmt.Errorf("invalid plan status: %q (valid: running, stopped, partial)", s)
	}
}

// ContainerInfo is the subset of Docker container state the CLI needs.
type ContainerInfo struct {
	// ContainerID is the Docker container ID.
	ContainerID string `json:"containerId"`

	// ContainerName is the name without Docker's leading "/".
	ContainerName string `json:"containerName"`

	// Node is the display name of the ROS node running in the container.
	Node string `json:"node"`

	// Status is the Docker state string ("running", "exited", "created").
	Status string `json:"status"`

	// Labels are all labels on the container.
	Labels map[string]string `json:"-"`
}

// LaunchedPlan is a plan that has been started on the container supervisor,
// reconstructed entirely from container labels.
type LaunchedPlan struct {
	// Name is the user-chosen plan name, unique per Docker host.
	Name string `json:"name"`

	// Variant is the launch variant the plan was composed from.
	Variant string `json:"variant"`

	// Status is derived from the container states.
	Status PlanStatus `json:"status"`

	// CreatedAt is when `up` started the plan.
	CreatedAt time.Time `json:"createdAt"`

	// Containers holds one entry per node, in node start order.
	Containers []ContainerInfo `json:"containers"`
}
