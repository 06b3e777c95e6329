// Package cli — up.go implements the "inslaunch up" command.
//
// The up command composes a launch plan and starts it on Docker, one
// detached container per node, in plan order. The rendered parameter file
// is written under the state directory and bind-mounted read-only into
// every container, together with the share directory and any file-valued
// arguments. rviz2 additionally gets the host's X display. Everything needed to find the plan again (ps, down) is
// stored in container labels.
//
// If a container fails to start, the containers already started for the
// plan are removed so no half-started plan is left behind.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inslaunch/inslaunch/internal/config"
	"github.com/inslaunch/inslaunch/internal/docker"
	"github.com/inslaunch/inslaunch/internal/model"
	"github.com/inslaunch/inslaunch/internal/paramfile"
	"github.com/inslaunch/inslaunch/internal/render"
)

// forwardedEnv are host environment variables passed to every node
// container when set, so nodes join the host's ROS graph.
var forwardedEnv = []string{"ROS_DOMAIN_ID", "RMW_IMPLEMENTATION", "ROS_LOCALHOST_ONLY"}

// validPlanName matches names usable in container names and labels.
var validPlanName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// renderedParamsFile is the file name of the rendered parameter file inside
// a plan's state directory.
const renderedParamsFile = "params.yml"

// upFlags holds the flag values for the up command.
type upFlags struct {
	compose composeFlags

	// name identifies the launched plan. Defaults to the variant name.
	name string

	// image overrides the settings file's docker_image.
	image string

	// dryRun prints the docker commands instead of running them.
	dryRun bool
}

// NewUpCommand creates the "up" cobra command.
func NewUpCommand() *cobra.Command {
	flags := &upFlags{}

	cmd := &cobra.Command{
		Use:   "up [name:=value]...",
		Short: "Start a launch plan on Docker",
		Long: `Compose a launch plan and start every node in its own container.

Containers use host networking and IPC so nodes see each other and the rest
of the ROS graph. Serial devices named by the port arguments are passed
through. The share directory and file arguments such as robot_urdf_file are
mounted read-only; rviz2 gets DISPLAY and /tmp/.X11-unix. The image must provide ROS 2 and the sensor driver packages.

Examples:
  inslaunch up
  inslaunch up --name field-test ntrip:=true ntrip_host:=caster.example.com
  inslaunch up --image ghcr.io/example/cv7-ins:humble --dry-run`,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context(), cmd.OutOrStdout(), args, flags)
		},
	}

	flags.compose.register(cmd)
	cmd.Flags().StringVar(&flags.name, "name", "", "Plan name (default: the variant name)")
	cmd.Flags().StringVar(&flags.image, "image", "", "Container image (default from settings)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the docker commands without running them")

	return cmd
}

func runUp(ctx context.Context, w io.Writer, pairs []string, flags *upFlags) error {
	// Step 1: Compose. Executables are looked up inside the container.
	plan, err := composeFromFlags(&flags.compose, pairs, composeOptions{inContainer: true})
	if err != nil {
		return err
	}

	name := flags.name
	if name == "" {
		name = plan.Variant
	}
	if !validPlanName.MatchString(name) {
		return model.NewCLIError(model.ExitInvalidArgument,
			fmt.Sprintf("invalid plan name %q: use letters, digits, '.', '_' and '-'", name))
	}
	image := flags.image
	if image == "" {
		image = settings.DockerImage
	}

	// Step 2: Validate and render the parameter file.
	source, rendered, err := renderPlanParams(plan)
	if err != nil {
		return err
	}

	stateDir, err := config.ResolveStateDir(settings.StateDir, nil)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to resolve state directory", err)
	}
	paramsPath := filepath.Join(stateDir, name, renderedParamsFile)

	// Step 3: Build one run spec per node.
	specs := buildRunSpecs(plan, name, image, source, paramsPath, time.Now(), os.Getenv, pathExists)

	if flags.dryRun {
		VerboseLog("Dry run: %s would be rendered to %s", source, paramsPath)
		for _, spec := range specs {
			fmt.Fprintln(w, "docker "+render.ShellJoin(docker.BuildRunArgs(spec)))
		}
		return nil
	}

	// Step 4: Connect to Docker and refuse to reuse a plan name.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	existing, err := docker.ListPlanContainers(ctx, cli, name)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return model.NewCLIError(model.ExitInvalidArgument,
			fmt.Sprintf("plan %q already exists with %d container(s); run 'inslaunch down %s' first",
				name, len(existing), name))
	}

	// Step 5: Write the rendered parameter file.
	if err := paramfile.Write(paramsPath, rendered); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to write rendered parameter file", err)
	}
	VerboseLog("Rendered %s to %s", source, paramsPath)

	// Step 6: Start nodes in plan order, rolling back on failure.
	for i, spec := range specs {
		logger.Info().Str("plan", name).Str("container", spec.ContainerName).Msg("starting node")
		if err := docker.RunNode(ctx, cli, spec); err != nil {
			rollbackUp(ctx, cli, name, specs[:i])
			return err
		}
	}

	printUpResult(w, name, image, specs)
	return nil
}

// x11SocketDir is the X server socket directory mounted into display nodes.
const x11SocketDir = "/tmp/.X11-unix"

// buildRunSpecs returns the container spec of every node of plan, in plan
// order. Parameter file references to source are rewritten to paramsPath,
// which is bind-mounted at the same path.
//
// The share directory and file-valued arguments outside it are mounted
// read-only when exists reports them present. Nodes that open windows also
// get DISPLAY and the X11 socket directory.
func buildRunSpecs(plan *model.LaunchPlan, name, image, source, paramsPath string, createdAt time.Time, getenv func(string) string, exists func(string) bool) []docker.RunSpec {
	env := make(map[string]string)
	for _, key := range forwardedEnv {
		if v := getenv(key); v != "" {
			env[key] = v
		}
	}

	mounts := planMounts(plan, source, paramsPath, exists)

	displayEnv := env
	var displayMounts []docker.Mount
	if display := getenv("DISPLAY"); display != "" {
		displayEnv = make(map[string]string, len(env)+1)
		for k, v := range env {
			displayEnv[k] = v
		}
		displayEnv["DISPLAY"] = display
	}
	if exists(x11SocketDir) {
		displayMounts = append(displayMounts, docker.Mount{Source: x11SocketDir})
	}

	specs := make([]docker.RunSpec, 0, len(plan.Nodes))
	for i := range plan.Nodes {
		node := withParamsFile(plan.Nodes[i], source, paramsPath)
		spec := docker.RunSpec{
			Image:         image,
			ContainerName: docker.ContainerName(name, node.DisplayName()),
			Labels:        docker.BuildLabels(name, plan.Variant, i, &node, createdAt),
			Devices:       node.Devices,
			Mounts:        mounts,
			Env:           env,
			Command:       render.NodeCommand(&node),
		}
		if node.Display {
			spec.Env = displayEnv
			spec.Mounts = append(append([]docker.Mount{}, mounts...), displayMounts...)
		}
		specs = append(specs, spec)
	}
	return specs
}

// planMounts returns the read-only mounts every node gets: the rendered
// parameter file, the share directory, and file arguments not under it.
// Paths that do not exist on the host are skipped.
func planMounts(plan *model.LaunchPlan, source, paramsPath string, exists func(string) bool) []docker.Mount {
	mounts := []docker.Mount{{Source: paramsPath, ReadOnly: true}}
	seen := map[string]bool{paramsPath: true}

	add := func(path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		if !exists(path) {
			logger.Debug().Str("path", path).Msg("not mounting missing path")
			return
		}
		mounts = append(mounts, docker.Mount{Source: path, ReadOnly: true})
	}

	shareDir := ""
	if plan.ShareDir != "" {
		shareDir = filepath.Clean(plan.ShareDir)
		add(shareDir)
	}
	for _, a := range plan.Arguments {
		if !a.File || a.Value == "" || a.Value == source || !filepath.IsAbs(a.Value) {
			continue
		}
		path := filepath.Clean(a.Value)
		if shareDir != "" && strings.HasPrefix(path, shareDir+string(filepath.Separator)) {
			continue
		}
		add(path)
	}
	return mounts
}

// pathExists reports whether path exists on the host.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// withParamsFile returns a copy of n whose parameter sources point at to
// instead of from.
func withParamsFile(n model.NodeSpec, from, to string) model.NodeSpec {
	params := make([]model.ParameterSource, len(n.Parameters))
	copy(params, n.Parameters)
	for i := range params {
		if params[i].File == from {
			params[i].File = to
		}
	}
	n.Parameters = params
	return n
}

// rollbackUp force-removes the containers already started for a plan.
// Failures are logged; the original start error is what the user sees.
func rollbackUp(ctx context.Context, cli *docker.Client, name string, started []docker.RunSpec) {
	logger.Warn().Str("plan", name).Int("containers", len(started)).Msg("start failed, removing started containers")

	containers, err := docker.ListPlanContainers(ctx, cli, name)
	if err != nil {
		logger.Error().Err(err).Str("plan", name).Msg("rollback: failed to list containers")
		return
	}
	for _, c := range containers {
		if err := docker.RemoveContainer(ctx, cli, c.ContainerID, true); err != nil {
			logger.Error().Err(err).Str("container", c.ContainerName).Msg("rollback: failed to remove container")
		}
	}
}

// printUpResult outputs the started plan in text or JSON format.
func printUpResult(w io.Writer, name, image string, specs []docker.RunSpec) {
	containers := make([]string, 0, len(specs))
	for _, s := range specs {
		containers = append(containers, s.ContainerName)
	}

	if IsJSONOutput() {
		_ = writeJSON(w, map[string]interface{}{
			"name":       name,
			"action":     "started",
			"image":      image,
			"containers": containers,
		})
		return
	}

	fmt.Fprintf(w, "Started plan %q (%d node(s), image %s)\n", name, len(specs), image)
	for _, c := range containers {
		fmt.Fprintf(w, "  %s\n", c)
	}
}
