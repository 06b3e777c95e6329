// container.go implements the container side of a launched plan: one
// detached container per node, discovered again later through labels.
package docker

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"github.com/inslaunch/inslaunch/internal/model"
)

// RunSpec describes the container for one node.
type RunSpec struct {
	// Image must ship ROS 2 and the node's package.
	Image string

	// ContainerName must be unique on the host.
	ContainerName string

	// Labels are attached with --label.
	Labels map[string]string

	// Devices are host device paths passed through unchanged.
	Devices []string

	// Mounts are bind mounts. Paths are kept identical inside the
	// container so paths in the node command stay valid.
	Mounts []Mount

	// Env holds extra environment variables, KEY -> value.
	Env map[string]string

	// Command is the shell line that starts the node.
	Command string
}

// Mount is a host path bind-mounted into a node container.
type Mount struct {
	Source string

	// Target defaults to Source.
	Target string

	ReadOnly bool
}

func (m Mount) target() string {
	if m.Target == "" {
		return m.Source
	}
	return m.Target
}

// ListManagedContainers returns every container carrying the
// "inslaunch.managed-by=inslaunch" label, stopped ones included.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	return listContainers(ctx, cli, labelFilter(FilterLabels("")))
}

// ListPlanContainers returns the containers of the named plan.
func ListPlanContainers(ctx context.Context, cli *Client, plan string) ([]model.ContainerInfo, error) {
	return listContainers(ctx, cli, labelFilter(FilterLabels(plan)))
}

// labelFilter turns a label selector into "label=key=value" list filters,
// sorted by key.
func labelFilter(labels map[string]string) filters.Args {
	args := filters.NewArgs()
	for _, key := range sortedKeys(labels) {
		args.Add("label", key+"="+labels[key])
	}
	return args
}

func listContainers(ctx context.Context, cli *Client, args filters.Args) ([]model.ContainerInfo, error) {
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker containers", err)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// containerToInfo strips the leading "/" Docker puts on container names.
func containerToInfo(c container.Summary) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Node:          c.Labels[LabelNode],
		Status:        string(c.State),
		Labels:        c.Labels,
	}
}

// GroupContainersByPlan groups containers by their plan label. Containers
// without one are skipped.
func GroupContainersByPlan(containers []model.ContainerInfo) map[string][]model.ContainerInfo {
	groups := make(map[string][]model.ContainerInfo)
	for _, c := range containers {
		name, ok := c.Labels[LabelPlan]
		if !ok || name == "" {
			continue
		}
		groups[name] = append(groups[name], c)
	}
	return groups
}

// BuildLaunchedPlan reconstructs a launched plan from its containers.
// Containers are ordered by their node index.
func BuildLaunchedPlan(name string, containers []model.ContainerInfo) (*model.LaunchedPlan, error) {
	if len(containers) == 0 {
		return nil, fmt.Errorf("cannot build plan %q: no containers provided", name)
	}

	meta, err := ParseLabels(containers[0].Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels for plan %q: %w", name, err)
	}

	ordered := make([]model.ContainerInfo, len(containers))
	copy(ordered, containers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sortIndex(ordered[i]) < sortIndex(ordered[j])
	})

	return &model.LaunchedPlan{
		Name:       name,
		Variant:    meta.Variant,
		Status:     DetermineStatus(ordered),
		CreatedAt:  meta.CreatedAt,
		Containers: ordered,
	}, nil
}

func sortIndex(c model.ContainerInfo) int {
	meta, err := ParseLabels(c.Labels)
	if err != nil || meta.Index < 0 {
		return math.MaxInt
	}
	return meta.Index
}

// DetermineStatus aggregates container states:
//   - every container running: running
//   - no container running: stopped
//   - otherwise: partial
func DetermineStatus(containers []model.ContainerInfo) model.PlanStatus {
	running := 0
	for _, c := range containers {
		if c.Status == "running" {
			running++
		}
	}
	switch {
	case running == 0:
		return model.PlanStopped
	case running == len(containers):
		return model.PlanRunning
	default:
		return model.PlanPartial
	}
}

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)
	repeatedDashes  = regexp.MustCompile(`-{2,}`)
)

// ContainerName returns the container name for a node of a plan, for
// example "inslaunch-field-test-ublox_f9p".
func ContainerName(plan, node string) string {
	name := "inslaunch-" + plan + "-" + node
	name = unsafeNameChars.ReplaceAllString(name, "-")
	return strings.Trim(repeatedDashes.ReplaceAllString(name, "-"), "-")
}

// RunNode creates and starts one node container through the Engine API.
// A missing image is pulled once before retrying the create. If the start
// fails, the created container is removed again.
func RunNode(ctx context.Context, cli *Client, spec RunSpec) error {
	cfg, hostCfg := BuildContainerConfig(spec)

	resp, err := cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.ContainerName)
	if client.IsErrNotFound(err) {
		if pullErr := pullImage(ctx, cli, spec.Image); pullErr != nil {
			return pullErr
		}
		resp, err = cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.ContainerName)
	}
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container %q", spec.ContainerName),
			err,
		)
	}

	if err := StartContainer(ctx, cli, resp.ID); err != nil {
		_ = cli.Inner().ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return err
	}
	return nil
}

// pullImage pulls ref and waits for the pull to finish.
func pullImage(ctx context.Context, cli *Client, ref string) error {
	body, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to pull image %q", ref), err)
	}
	defer func() { _ = body.Close() }()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, body); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to pull image %q", ref), err)
	}
	return nil
}

// BuildContainerConfig returns the Engine API configuration for spec. It
// describes the same container as BuildRunArgs.
func BuildContainerConfig(spec RunSpec) (*container.Config, *container.HostConfig) {
	env := make([]string, 0, len(spec.Env))
	for _, key := range sortedKeys(spec.Env) {
		env = append(env, key+"="+spec.Env[key])
	}

	cfg := &container.Config{
		Image:  spec.Image,
		Cmd:    []string{"bash", "-c", nodeScript(spec.Command)},
		Env:    env,
		Labels: spec.Labels,
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "host",
		IpcMode:     "host",
	}
	for _, d := range spec.Devices {
		hostCfg.Resources.Devices = append(hostCfg.Resources.Devices, container.DeviceMapping{
			PathOnHost:        d,
			PathInContainer:   d,
			CgroupPermissions: "rwm",
		})
	}
	for _, m := range spec.Mounts {
		hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.target(),
			ReadOnly: m.ReadOnly,
		})
	}
	return cfg, hostCfg
}

// BuildRunArgs returns the docker CLI arguments equivalent to
// BuildContainerConfig, for printing. Label and env flags are sorted by key
// so the result is deterministic.
func BuildRunArgs(spec RunSpec) []string {
	args := []string{"run", "-d", "--name", spec.ContainerName, "--network", "host", "--ipc", "host"}

	for _, key := range sortedKeys(spec.Labels) {
		args = append(args, "--label", key+"="+spec.Labels[key])
	}
	for _, d := range spec.Devices {
		args = append(args, "--device", d)
	}
	for _, m := range spec.Mounts {
		v := m.Source + ":" + m.target()
		if m.ReadOnly {
			v += ":ro"
		}
		args = append(args, "-v", v)
	}
	for _, key := range sortedKeys(spec.Env) {
		args = append(args, "-e", key+"="+spec.Env[key])
	}

	args = append(args, spec.Image, "bash", "-c", nodeScript(spec.Command))
	return args
}

// nodeScript wraps a node command line so it runs with ROS sourced.
// ROS_DISTRO is set by every official ROS image, so the setup script path
// can be derived inside the container.
func nodeScript(command string) string {
	return `source /opt/ros/"$ROS_DISTRO"/setup.bash && exec ` + command
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StartContainer starts an existing, stopped container.
func StartContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", containerID),
			err,
		)
	}
	return nil
}

// StopContainer stops a container, letting Docker apply its default grace
// period before SIGKILL.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container. With force, a running container is
// killed first.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
