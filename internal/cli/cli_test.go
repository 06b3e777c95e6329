// Package cli — cli_test.go runs the commands that need no Docker daemon
// end to end through the root command, and unit-tests the pure helpers
// behind up, ps, and down.
package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inslaunch/inslaunch/internal/docker"
	"github.com/inslaunch/inslaunch/internal/launch"
	"github.com/inslaunch/inslaunch/internal/model"
)

const validParams = `microstrain_inertial_driver:
  ros__parameters:
    port: "$(var microstrain_port)"
    baudrate: $(var microstrain_baudrate)
ublox_f9p:
  ros__parameters:
    device: "$(var ublox_f9p_port)"
/**:
  ros__parameters:
    use_sim_time: false
`

// executeCommand runs the root command with args in an isolated
// environment and returns what it wrote to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("INSLAUNCH_LOG_LEVEL", "error")

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// writeShare creates a share directory holding the default parameter file.
func writeShare(t *testing.T, params string) string {
	t.Helper()

	share := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(share, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(share, "config", "cv7_ins_ublox_f9p.yml"), []byte(params), 0o644))
	return share
}

func requireExitCode(t *testing.T, err error, want model.ExitCode) {
	t.Helper()

	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %T: %v", err, err)
	assert.Equal(t, want, cliErr.Code, cliErr.Error())
}

func TestVariantsCommand(t *testing.T) {
	out, err := executeCommand(t, "variants")
	require.NoError(t, err)
	assert.Contains(t, out, "* cv7_ins_ublox_f9p ")
	assert.Contains(t, out, "cv7_ins_ublox_f9p_headless")
}

func TestArgsCommand_MasksSecrets(t *testing.T) {
	out, err := executeCommand(t, "args", "--json")
	require.NoError(t, err)

	var result struct {
		Variant   string                 `json:"variant"`
		Arguments []model.LaunchArgument `json:"arguments"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, launch.DefaultVariant, result.Variant)
	require.NotEmpty(t, result.Arguments)
	assert.Equal(t, "microstrain_port", result.Arguments[0].Name)

	for _, a := range result.Arguments {
		if a.Name == "ntrip_password" {
			assert.Equal(t, "********", a.Default)
		}
	}

	out, err = executeCommand(t, "args", "--show-secrets")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.NotContains(t, out, "********")
}

func TestPlanCommand(t *testing.T) {
	share := writeShare(t, validParams)

	tests := []struct {
		name        string
		args        []string
		contains    []string
		notContains []string
	}{
		{
			name:        "defaults as yaml",
			args:        []string{"--format", "yaml"},
			contains:    []string{`# Launch plan for variant "cv7_ins_ublox_f9p"`, "microstrain_inertial_driver", "ublox_f9p", "rviz2", `ntrip is "false", not "true"`},
			notContains: []string{"value: pass\n"},
		},
		{
			name:        "ntrip enabled as commands",
			args:        []string{"--format", "commands", "ntrip:=true", "rviz:=false"},
			contains:    []string{"ros2 run ntrip_client ntrip_ros.py", "--params-file " + share + "/config/cv7_ins_ublox_f9p.yml"},
			notContains: []string{"ros2 run rviz2"},
		},
		{
			name:     "json flag selects json",
			args:     []string{"--json", "ntrip_host:=caster.example.com"},
			contains: []string{`"variant": "cv7_ins_ublox_f9p"`, `"caster.example.com"`},
		},
		{
			name:        "headless variant",
			args:        []string{"--variant", "cv7_ins_ublox_f9p_headless", "--format", "text"},
			contains:    []string{"cv7_ins_ublox_f9p_headless", "ublox_f9p"},
			notContains: []string{"robot_state_publisher"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"plan", "--share-dir", share}, tt.args...)
			out, err := executeCommand(t, args...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestPlanCommand_OverrideFileAndPairPrecedence(t *testing.T) {
	share := writeShare(t, validParams)
	file := filepath.Join(t.TempDir(), "site.toml")
	require.NoError(t, os.WriteFile(file, []byte("ntrip_host = \"file.example.com\"\nntrip_port = 2102\n"), 0o644))

	out, err := executeCommand(t, "plan", "--json", "--share-dir", share,
		"-f", file, "ntrip_host:=pair.example.com")
	require.NoError(t, err)

	var plan model.LaunchPlan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	host, _ := plan.Argument("ntrip_host")
	port, _ := plan.Argument("ntrip_port")
	assert.Equal(t, "pair.example.com", host)
	assert.Equal(t, "2102", port)
}

func TestPlanCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "undeclared argument", args: []string{"plan", "bogus:=1"}},
		{name: "malformed pair", args: []string{"plan", "ntrip=true"}},
		{name: "unknown variant", args: []string{"plan", "--variant", "vn300"}},
		{name: "unknown format", args: []string{"plan", "--format", "xml"}},
		{name: "missing override file", args: []string{"plan", "-f", "/nonexistent/site.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			requireExitCode(t, err, model.ExitInvalidArgument)
		})
	}
}

func TestParamsCommand_RendersSubstitutions(t *testing.T) {
	share := writeShare(t, validParams)

	out, err := executeCommand(t, "params", "--share-dir", share, "ublox_f9p_port:=/dev/ttyACM0")
	require.NoError(t, err)
	assert.Contains(t, out, `port: "/dev/microstrain_main"`)
	assert.Contains(t, out, "baudrate: 115200")
	assert.Contains(t, out, `device: "/dev/ttyACM0"`)
	assert.NotContains(t, out, "$(var")
}

func TestParamsCommand_OutputFile(t *testing.T) {
	share := writeShare(t, validParams)
	dest := filepath.Join(t.TempDir(), "out", "params.yml")

	out, err := executeCommand(t, "params", "--share-dir", share, "-o", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/dev/microstrain_main")
}

func TestParamsCommand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params string
	}{
		{name: "parameters at top level", params: "ros__parameters:\n  port: /dev/ttyACM0\n"},
		{name: "section without ros__parameters", params: "ublox_f9p:\n  port: /dev/ttyACM0\n"},
		{name: "empty file", params: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share := writeShare(t, tt.params)
			_, err := executeCommand(t, "params", "--share-dir", share)
			requireExitCode(t, err, model.ExitParamsFileError)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := executeCommand(t, "params", "--share-dir", t.TempDir())
		requireExitCode(t, err, model.ExitParamsFileError)
	})
}

func TestUpCommand_DryRun(t *testing.T) {
	share := writeShare(t, validParams)

	out, err := executeCommand(t, "up", "--dry-run", "--share-dir", share,
		"--name", "field-test", "--image", "ros:jazzy", "rviz:=false")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0],
		"docker run -d --name inslaunch-field-test-microstrain_inertial_driver --network host --ipc host"), lines[0])
	assert.Contains(t, lines[0], "--device /dev/microstrain_main")
	assert.Contains(t, lines[1], "--device /dev/ttyACM1")
	assert.Contains(t, lines[2], "inslaunch-field-test-robot_state_publisher")
	for _, l := range lines {
		assert.Contains(t, l, " ros:jazzy bash -c ")
		assert.Contains(t, l, "/inslaunch/field-test/params.yml")
		assert.Contains(t, l, "-v "+share+":"+share+":ro")
		assert.NotContains(t, l, "--params-file "+share+"/config")
	}
}

func TestUpCommand_DryRunDisplay(t *testing.T) {
	share := writeShare(t, validParams)
	t.Setenv("DISPLAY", ":0")

	out, err := executeCommand(t, "up", "--dry-run", "--share-dir", share, "--name", "bench")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	rviz := lines[3]
	assert.Contains(t, rviz, "--name inslaunch-bench-rviz2 ")
	assert.Contains(t, rviz, "-e DISPLAY=:0")
	assert.Contains(t, rviz, "-v "+share+":"+share+":ro")
	for _, l := range lines[:3] {
		assert.NotContains(t, l, "DISPLAY")
		assert.NotContains(t, l, ".X11-unix")
	}
}

func TestUpCommand_InvalidName(t *testing.T) {
	share := writeShare(t, validParams)

	_, err := executeCommand(t, "up", "--dry-run", "--share-dir", share, "--name", "field test")
	requireExitCode(t, err, model.ExitInvalidArgument)
}

func TestBuildRunSpecs(t *testing.T) {
	composer, err := launch.NewComposer(launch.Options{
		ShareDir: "/share",
		Env:      func(string) (string, bool) { return "", false },
		LookPath: func(name string) (string, error) { return name, nil },
	})
	require.NoError(t, err)
	plan, err := composer.Compose(map[string]string{"ntrip": "true", "rviz": "false"})
	require.NoError(t, err)

	createdAt := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	env := map[string]string{"ROS_DOMAIN_ID": "7", "HOME": "/root"}
	specs := buildRunSpecs(plan, "field-test", "ros:humble",
		"/share/config/cv7_ins_ublox_f9p.yml", "/state/field-test/params.yml",
		createdAt, func(k string) string { return env[k] }, func(string) bool { return true })

	require.Len(t, specs, 4)

	names := make([]string, 0, len(specs))
	for i, s := range specs {
		names = append(names, s.ContainerName)
		assert.Equal(t, "ros:humble", s.Image)
		assert.Equal(t, []docker.Mount{
			{Source: "/state/field-test/params.yml", ReadOnly: true},
			{Source: "/share", ReadOnly: true},
		}, s.Mounts)
		assert.Equal(t, map[string]string{"ROS_DOMAIN_ID": "7"}, s.Env)
		assert.Equal(t, fmt.Sprint(i), s.Labels[docker.LabelIndex])
		assert.Equal(t, "field-test", s.Labels[docker.LabelPlan])
		assert.Contains(t, s.Command, "--params-file /state/field-test/params.yml")
	}
	assert.Equal(t, []string{
		"inslaunch-field-test-microstrain_inertial_driver",
		"inslaunch-field-test-ublox_f9p",
		"inslaunch-field-test-robot_state_publisher",
		"inslaunch-field-test-ntrip_client",
	}, names)

	assert.Equal(t, []string{"/dev/microstrain_main"}, specs[0].Devices)
	assert.Equal(t, []string{"/dev/ttyACM1"}, specs[1].Devices)
	assert.Contains(t, specs[2].Command, `"robot_description:=$(xacro /share/urdf/cv7_ins_ublox_f9p.urdf.xacro)"`)

	// The plan itself still points at the source file.
	assert.Equal(t, []string{"/share/config/cv7_ins_ublox_f9p.yml"}, plan.ParameterFiles())
}

func TestBuildRunSpecs_Mounts(t *testing.T) {
	composer, err := launch.NewComposer(launch.Options{
		ShareDir: "/share",
		Env:      func(string) (string, bool) { return "", false },
		LookPath: func(name string) (string, error) { return name, nil },
	})
	require.NoError(t, err)

	paramsMount := docker.Mount{Source: "/state/bench/params.yml", ReadOnly: true}
	shareMount := docker.Mount{Source: "/share", ReadOnly: true}
	x11Mount := docker.Mount{Source: "/tmp/.X11-unix"}

	tests := []struct {
		name        string
		overrides   map[string]string
		env         map[string]string
		missing     []string
		node        string
		wantMounts  []docker.Mount
		wantDisplay string
	}{
		{
			name:       "custom urdf outside the share dir",
			overrides:  map[string]string{"rviz": "false", "robot_urdf_file": "/home/robot/my.urdf"},
			node:       "inslaunch-bench-robot_state_publisher",
			wantMounts: []docker.Mount{paramsMount, shareMount, {Source: "/home/robot/my.urdf", ReadOnly: true}},
		},
		{
			name:       "urdf under the share dir is covered by the share mount",
			overrides:  map[string]string{"rviz": "false", "robot_urdf_file": "/share/urdf/other.urdf"},
			node:       "inslaunch-bench-robot_state_publisher",
			wantMounts: []docker.Mount{paramsMount, shareMount},
		},
		{
			name:       "missing paths are not mounted",
			overrides:  map[string]string{"rviz": "false", "robot_urdf_file": "/home/robot/gone.urdf"},
			missing:    []string{"/share", "/home/robot/gone.urdf"},
			node:       "inslaunch-bench-robot_state_publisher",
			wantMounts: []docker.Mount{paramsMount},
		},
		{
			name:        "rviz gets the display",
			overrides:   map[string]string{},
			env:         map[string]string{"DISPLAY": ":1"},
			node:        "inslaunch-bench-rviz2",
			wantMounts:  []docker.Mount{paramsMount, shareMount, x11Mount},
			wantDisplay: ":1",
		},
		{
			name:       "rviz without an X socket",
			overrides:  map[string]string{},
			missing:    []string{"/tmp/.X11-unix"},
			node:       "inslaunch-bench-rviz2",
			wantMounts: []docker.Mount{paramsMount, shareMount},
		},
		{
			name:       "other nodes never get the display",
			overrides:  map[string]string{},
			env:        map[string]string{"DISPLAY": ":1"},
			node:       "inslaunch-bench-ublox_f9p",
			wantMounts: []docker.Mount{paramsMount, shareMount},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := composer.Compose(tt.overrides)
			require.NoError(t, err)

			missing := make(map[string]bool)
			for _, p := range tt.missing {
				missing[p] = true
			}
			specs := buildRunSpecs(plan, "bench", "ros:humble",
				"/share/config/cv7_ins_ublox_f9p.yml", "/state/bench/params.yml",
				time.Now(), func(k string) string { return tt.env[k] },
				func(p string) bool { return !missing[p] })

			var spec *docker.RunSpec
			for i := range specs {
				if specs[i].ContainerName == tt.node {
					spec = &specs[i]
				}
			}
			require.NotNil(t, spec, "no container %s", tt.node)

			assert.Equal(t, tt.wantMounts, spec.Mounts)
			assert.Equal(t, tt.wantDisplay, spec.Env["DISPLAY"])
		})
	}
}

func TestCollectPlans(t *testing.T) {
	createdAt := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	node := func(plan string, index int, name, status string) model.ContainerInfo {
		spec := &model.NodeSpec{Package: "pkg", Executable: "exe", Name: name}
		return model.ContainerInfo{
			ContainerID:   plan + name,
			ContainerName: docker.ContainerName(plan, name),
			Node:          name,
			Status:        status,
			Labels:        docker.BuildLabels(plan, launch.DefaultVariant, index, spec, createdAt),
		}
	}

	containers := []model.ContainerInfo{
		node("zeta", 1, "ublox_f9p", "exited"),
		node("zeta", 0, "microstrain_inertial_driver", "running"),
		node("alpha", 0, "microstrain_inertial_driver", "running"),
		{ContainerID: "broken", Labels: map[string]string{docker.LabelPlan: "broken"}},
	}
	groups := docker.GroupContainersByPlan(containers)

	all := collectPlans(groups, "all")
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, model.PlanRunning, all[0].Status)
	assert.Equal(t, "zeta", all[1].Name)
	assert.Equal(t, model.PlanPartial, all[1].Status)
	assert.Equal(t, "microstrain_inertial_driver=running ublox_f9p=exited", FormatNodeStates(all[1].Containers))
	assert.Equal(t, "1/2", FormatNodeCounts(all[1].Containers))

	partial := collectPlans(groups, "partial")
	require.Len(t, partial, 1)
	assert.Equal(t, "zeta", partial[0].Name)

	assert.Empty(t, collectPlans(groups, "stopped"))
}

func TestFormatNodeStates_Empty(t *testing.T) {
	assert.Equal(t, "-", FormatNodeStates(nil))
	assert.Equal(t, "0/0", FormatNodeCounts(nil))
}

func TestContainersToStartAndStop(t *testing.T) {
	createdAt := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	node := func(index int, name, status string) model.ContainerInfo {
		spec := &model.NodeSpec{Package: "pkg", Executable: "exe", Name: name}
		return model.ContainerInfo{
			ContainerID:   "bench-" + name,
			ContainerName: docker.ContainerName("bench", name),
			Node:          name,
			Status:        status,
			Labels:        docker.BuildLabels("bench", launch.DefaultVariant, index, spec, createdAt),
		}
	}

	tests := []struct {
		name      string
		states    []string
		wantStart []string
		wantStop  []string
	}{
		{
			name:      "all running",
			states:    []string{"running", "running", "running"},
			wantStart: nil,
			wantStop:  []string{"robot_state_publisher", "ublox_f9p", "microstrain_inertial_driver"},
		},
		{
			name:      "all stopped",
			states:    []string{"exited", "exited", "created"},
			wantStart: []string{"microstrain_inertial_driver", "ublox_f9p", "robot_state_publisher"},
			wantStop:  nil,
		},
		{
			name:      "partial",
			states:    []string{"running", "exited", "running"},
			wantStart: []string{"ublox_f9p"},
			wantStop:  []string{"robot_state_publisher", "microstrain_inertial_driver"},
		},
	}

	names := []string{"microstrain_inertial_driver", "ublox_f9p", "robot_state_publisher"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Listed out of order; the launched plan restores node order.
			containers := []model.ContainerInfo{
				node(2, names[2], tt.states[2]),
				node(0, names[0], tt.states[0]),
				node(1, names[1], tt.states[1]),
			}
			plan, err := docker.BuildLaunchedPlan("bench", containers)
			require.NoError(t, err)

			nodesOf := func(cs []model.ContainerInfo) []string {
				var out []string
				for _, c := range cs {
					out = append(out, c.Node)
				}
				return out
			}
			assert.Equal(t, tt.wantStart, nodesOf(containersToStart(plan)))
			assert.Equal(t, tt.wantStop, nodesOf(containersToStop(plan)))
		})
	}
}

func TestPrintLifecycleResult(t *testing.T) {
	containers := []model.ContainerInfo{
		{ContainerName: "inslaunch-bench-ublox_f9p"},
		{ContainerName: "inslaunch-bench-microstrain_inertial_driver"},
	}

	jsonOutput = false

	var buf bytes.Buffer
	printLifecycleResult(&buf, "bench", "stopped", containers)
	assert.Equal(t, "Plan \"bench\": stopped 2 container(s)\n"+
		"  inslaunch-bench-ublox_f9p\n"+
		"  inslaunch-bench-microstrain_inertial_driver\n", buf.String())

	buf.Reset()
	printLifecycleResult(&buf, "bench", "started", nil)
	assert.Equal(t, "Plan \"bench\": nothing to do\n", buf.String())
}

func TestStartStopCommands_RequireName(t *testing.T) {
	for _, name := range []string{"start", "stop"} {
		t.Run(name, func(t *testing.T) {
			_, err := executeCommand(t, name)
			require.Error(t, err)
		})
	}
}

func TestPromptConfirmation(t *testing.T) {
	plan := &model.LaunchedPlan{
		Name:    "field-test",
		Variant: launch.DefaultVariant,
		Containers: []model.ContainerInfo{
			{ContainerName: "inslaunch-field-test-ublox_f9p", Status: "running"},
		},
	}

	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := promptConfirmation(strings.NewReader(tt.input), &out, plan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "inslaunch-field-test-ublox_f9p (running)")
		})
	}
}

func TestClassifyComposeError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "unknown variant", err: fmt.Errorf("%w: %q", launch.ErrUnknownVariant, "x"), message: "unknown variant"},
		{name: "undeclared", err: fmt.Errorf("%w: bogus", launch.ErrUndeclaredArgument), message: "undeclared launch argument"},
		{name: "other", err: errors.New("boom"), message: "failed to compose launch plan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyComposeError(tt.err)
			requireExitCode(t, err, model.ExitInvalidArgument)
			assert.Contains(t, err.Error(), tt.message)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
