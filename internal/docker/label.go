package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inslaunch/inslaunch/internal/model"
)

// Label keys persisted on every node container. They are the only record of
// which plans exist: `ps` and `down` rebuild everything from them.
//
// All keys share the "inslaunch." prefix to avoid collisions with labels set
// by images or other tools.
const (
	LabelPrefix = "inslaunch."

	// LabelManagedBy marks containers started by this CLI.
	// Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelPlan is the plan name shared by all containers of one `up`.
	LabelPlan = LabelPrefix + "plan"

	// LabelVariant is the launch variant the plan was composed from.
	LabelVariant = LabelPrefix + "variant"

	// LabelNode is the node display name (e.g., "ublox_f9p").
	LabelNode = LabelPrefix + "node"

	// LabelIndex is the node's position in the plan, zero-based.
	LabelIndex = LabelPrefix + "index"

	LabelPackage    = LabelPrefix + "package"
	LabelExecutable = LabelPrefix + "executable"
	LabelNamespace  = LabelPrefix + "namespace"
	LabelOutput     = LabelPrefix + "output"

	// LabelCreatedAt is the RFC3339 UTC time the plan was started.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "inslaunch"

// NodeLabels is the metadata decoded from one container's labels.
type NodeLabels struct {
	Plan       string
	Variant    string
	Node       string
	Index      int
	Package    string
	Executable string
	Namespace  string
	Output     model.OutputMode
	CreatedAt  time.Time
}

// BuildLabels returns the labels for the container running node, the
// index-th node of plan name.
func BuildLabels(name, variant string, index int, node *model.NodeSpec, createdAt time.Time) map[string]string {
	output := node.Output
	if output == "" {
		output = model.OutputScreen
	}
	return map[string]string{
		LabelManagedBy:  ManagedByValue,
		LabelPlan:       name,
		LabelVariant:    variant,
		LabelNode:       node.DisplayName(),
		LabelIndex:      strconv.Itoa(index),
		LabelPackage:    node.Package,
		LabelExecutable: node.Executable,
		LabelNamespace:  node.Namespace,
		LabelOutput:     output.String(),
		LabelCreatedAt:  createdAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels decodes the labels written by BuildLabels. All required
// labels are checked at once so the error lists every missing key.
func ParseLabels(labels map[string]string) (*NodeLabels, error) {
	required := []string{
		LabelManagedBy,
		LabelPlan,
		LabelVariant,
		LabelNode,
		LabelPackage,
		LabelExecutable,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range required {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	out := &NodeLabels{
		Plan:       labels[LabelPlan],
		Variant:    labels[LabelVariant],
		Node:       labels[LabelNode],
		Package:    labels[LabelPackage],
		Executable: labels[LabelExecutable],
		Namespace:  labels[LabelNamespace],
		Output:     model.OutputScreen,
		CreatedAt:  createdAt,
	}

	if v, ok := labels[LabelOutput]; ok && v != "" {
		if out.Output, err = model.ParseOutputMode(v); err != nil {
			return nil, fmt.Errorf("invalid label %s: %w", LabelOutput, err)
		}
	}

	// The index is optional; containers without one sort last.
	out.Index = -1
	if v, ok := labels[LabelIndex]; ok {
		if out.Index, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid label %s: %w", LabelIndex, err)
		}
	}

	return out, nil
}

// FilterLabels returns the label selector matching every managed container,
// or only the containers of plan when plan is not empty.
func FilterLabels(plan string) map[string]string {
	labels := map[string]string{LabelManagedBy: ManagedByValue}
	if plan != "" {
		labels[LabelPlan] = plan
	}
	return labels
}
