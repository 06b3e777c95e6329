package launch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inslaunch/inslaunch/internal/model"
)

const testShare = "/opt/ros/humble/share/microstrain_ros_examples"

// newTestComposer builds a Composer with deterministic PATH and env lookups
// so tests do not depend on the host.
func newTestComposer(t *testing.T, variant string) *Composer {
	t.Helper()

	c, err := NewComposer(Options{
		Variant:  variant,
		ShareDir: testShare,
		Env:      func(string) (string, bool) { return "", false },
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
	})
	require.NoError(t, err)
	return c
}

func nodeNames(nodes []model.NodeSpec) []string {
	names := make([]string, 0, len(nodes))
	for i := range nodes {
		names = append(names, nodes[i].DisplayName())
	}
	return names
}

// TestCompose_Defaults verifies that with no overrides every argument
// resolves to its hard-coded default.
func TestCompose_Defaults(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(nil)
	require.NoError(t, err)

	want := map[string]string{
		"microstrain_port":          "/dev/microstrain_main",
		"microstrain_baudrate":      "115200",
		"ublox_f9p_port":            "/dev/ttyACM1",
		"ntrip":                     "false",
		"ntrip_host":                "20.185.11.35",
		"ntrip_port":                "2101",
		"ntrip_mountpoint":          "VRS_RTCM3",
		"ntrip_username":            "user",
		"ntrip_password":            "pass",
		"ntrip_ssl":                 "false",
		"rviz":                      "true",
		"params_file":               testShare + "/config/cv7_ins_ublox_f9p.yml",
		"robot_urdf_file":           testShare + "/urdf/cv7_ins_ublox_f9p.urdf.xacro",
		"robot_description_command": "/usr/bin/xacro " + testShare + "/urdf/cv7_ins_ublox_f9p.urdf.xacro",
	}

	require.Len(t, plan.Arguments, len(want))
	for _, a := range plan.Arguments {
		assert.Equal(t, want[a.Name], a.Value, "argument %s", a.Name)
		assert.Equal(t, model.SourceDefault, a.Source, "argument %s", a.Name)
	}

	// Default toggles: ntrip off, rviz on.
	assert.Equal(t,
		[]string{"microstrain_inertial_driver", "ublox_f9p", "robot_state_publisher", "rviz2"},
		nodeNames(plan.Nodes))
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, "ntrip_client", plan.Skipped[0].Node.DisplayName())
}

// TestCompose_DeclarationOrder checks that arguments keep the order of the
// original launch description.
func TestCompose_DeclarationOrder(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(nil)
	require.NoError(t, err)

	names := make([]string, 0, len(plan.Arguments))
	for _, a := range plan.Arguments {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{
		"microstrain_port", "microstrain_baudrate", "ublox_f9p_port",
		"ntrip", "ntrip_host", "ntrip_port", "ntrip_mountpoint", "ntrip_username", "ntrip_password", "ntrip_ssl",
		"rviz", "params_file", "robot_urdf_file", "robot_description_command",
	}, names)
}

// TestCompose_OverridesWinOverDefaults verifies override > default and that
// untouched arguments keep their defaults.
func TestCompose_OverridesWinOverDefaults(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(map[string]string{
		"ntrip_port":       "2102",
		"microstrain_port": "/dev/ttyUSB0",
	})
	require.NoError(t, err)

	for _, a := range plan.Arguments {
		switch a.Name {
		case "ntrip_port":
			assert.Equal(t, "2102", a.Value)
			assert.Equal(t, model.SourceOverride, a.Source)
		case "microstrain_port":
			assert.Equal(t, "/dev/ttyUSB0", a.Value)
			assert.Equal(t, model.SourceOverride, a.Source)
		default:
			assert.Equal(t, model.SourceDefault, a.Source, "argument %s", a.Name)
		}
	}

	inertial, ok := plan.Node("microstrain_inertial_driver")
	require.True(t, ok)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, inertial.Devices)
}

// TestCompose_NtripCondition verifies the NTRIP client is included if and
// only if ntrip resolves to the literal "true".
func TestCompose_NtripCondition(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"false", false},
		{"True", false},
		{"1", false},
		{"", false},
	}

	for _, variant := range []string{"cv7_ins_ublox_f9p", "cv7_ins_ublox_f9p_headless"} {
		for _, tt := range tests {
			t.Run(variant+"/"+tt.value, func(t *testing.T) {
				plan, err := newTestComposer(t, variant).Compose(map[string]string{"ntrip": tt.value})
				require.NoError(t, err)
				assert.Equal(t, tt.want, plan.HasNode("ntrip_client"))
			})
		}
	}
}

// TestCompose_RvizCondition verifies RViz is included if and only if rviz
// resolves to "true", and that it runs with log output and the bundled
// config file.
func TestCompose_RvizCondition(t *testing.T) {
	c := newTestComposer(t, DefaultVariant)

	on, err := c.Compose(map[string]string{"rviz": "true"})
	require.NoError(t, err)
	rviz, ok := on.Node("rviz2")
	require.True(t, ok)
	assert.Equal(t, model.OutputLog, rviz.Output)
	assert.Equal(t, []string{"-d", testShare + "/rviz/cv7_ins_ublox_f9p.rviz"}, rviz.Arguments)

	off, err := c.Compose(map[string]string{"rviz": "false"})
	require.NoError(t, err)
	assert.False(t, off.HasNode("rviz2"))
	assert.True(t, off.HasNode("robot_state_publisher"), "the robot description is not gated on rviz")
}

// TestCompose_GNSSRemapsFixed verifies the GNSS remap list does not depend
// on override values.
func TestCompose_GNSSRemapsFixed(t *testing.T) {
	overrideSets := []map[string]string{
		nil,
		{"ntrip": "true"},
		{"ublox_f9p_port": "/dev/ttyACM9", "rviz": "false"},
		{"params_file": "/tmp/custom.yml"},
	}

	expectedFull := []model.Remap{
		{From: "fix", To: "ext/llh_position"},
		{From: "fix_velocity", To: "ext/velocity_enu"},
		{From: "ublox_f9p/fix", To: "ext/llh_position"},
		{From: "ublox_f9p/fix_velocity", To: "ext/velocity_enu"},
		{From: "/rtcm", To: "rtcm"},
	}

	for _, overrides := range overrideSets {
		plan, err := newTestComposer(t, DefaultVariant).Compose(overrides)
		require.NoError(t, err)
		gnss, ok := plan.Node("ublox_f9p")
		require.True(t, ok)
		assert.Equal(t, expectedFull, gnss.Remaps)
	}

	headless, err := newTestComposer(t, "cv7_ins_ublox_f9p_headless").Compose(map[string]string{"ntrip": "true"})
	require.NoError(t, err)
	gnss, ok := headless.Node("ublox_f9p")
	require.True(t, ok)
	assert.Equal(t, expectedFull, gnss.Remaps)
	assert.Equal(t, expectedFull, GNSSRemaps())
}

// TestCompose_SharedParamsFile verifies every node reads the same resolved
// parameter file with substitutions allowed.
func TestCompose_SharedParamsFile(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(map[string]string{
		"params_file": "/home/robot/params.yml",
		"ntrip":       "true",
	})
	require.NoError(t, err)
	require.Len(t, plan.Nodes, 5)

	for _, n := range plan.Nodes {
		require.Len(t, n.Parameters, 1, "node %s", n.DisplayName())
		assert.Equal(t, "/home/robot/params.yml", n.Parameters[0].File, "node %s", n.DisplayName())
		assert.True(t, n.Parameters[0].AllowSubstitutions, "node %s", n.DisplayName())
	}
	assert.Equal(t, []string{"/home/robot/params.yml"}, plan.ParameterFiles())
}

// TestCompose_RobotDescriptionFollowsURDF verifies that the derived
// robot_description_command default tracks an overridden URDF path, and that
// the robot state publisher receives it as a command-valued parameter.
func TestCompose_RobotDescriptionFollowsURDF(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(map[string]string{
		"robot_urdf_file": "/home/robot/my_robot.urdf.xacro",
	})
	require.NoError(t, err)

	cmd, ok := plan.Argument("robot_description_command")
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/xacro /home/robot/my_robot.urdf.xacro", cmd)

	rsp, ok := plan.Node("robot_state_publisher")
	require.True(t, ok)
	require.Len(t, rsp.Parameters[0].Inline, 1)
	assert.Equal(t, model.InlineParameter{
		Name:        "robot_description",
		Value:       "/usr/bin/xacro /home/robot/my_robot.urdf.xacro",
		FromCommand: true,
	}, rsp.Parameters[0].Inline[0])
}

// TestCompose_OutputModesExplicit verifies every node of every variant
// declares a valid output mode instead of relying on a fallback.
func TestCompose_OutputModesExplicit(t *testing.T) {
	for _, info := range Variants() {
		plan, err := newTestComposer(t, info.Name).Compose(map[string]string{"ntrip": "true"})
		require.NoError(t, err)
		for i := range plan.Nodes {
			n := &plan.Nodes[i]
			assert.True(t, n.Output.IsValid(), "%s/%s has output %q", info.Name, n.DisplayName(), n.Output)
		}
	}

	plan, err := newTestComposer(t, DefaultVariant).Compose(nil)
	require.NoError(t, err)
	rsp, ok := plan.Node("robot_state_publisher")
	require.True(t, ok)
	assert.Equal(t, model.OutputLog, rsp.Output)
}

// TestCompose_OverrideValuesAreLiteral verifies that overrides are not
// evaluated as substitution expressions.
// TestCompose_HostResources verifies the metadata the Docker backend needs
// to mount files and forward the display.
func TestCompose_HostResources(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(nil)
	require.NoError(t, err)

	assert.Equal(t, testShare, plan.ShareDir)

	var files []string
	for _, a := range plan.Arguments {
		if a.File {
			files = append(files, a.Name)
		}
	}
	assert.Equal(t, []string{"params_file", "robot_urdf_file"}, files)

	for i := range plan.Nodes {
		n := &plan.Nodes[i]
		assert.Equal(t, n.DisplayName() == "rviz2", n.Display, "node %s", n.DisplayName())
	}
}

func TestCompose_OverrideValuesAreLiteral(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(map[string]string{
		"ntrip_password": "$(var ntrip_username)",
	})
	require.NoError(t, err)

	v, _ := plan.Argument("ntrip_password")
	assert.Equal(t, "$(var ntrip_username)", v)
}

// TestCompose_UndeclaredOverride verifies unknown names are rejected and
// all of them are reported.
func TestCompose_UndeclaredOverride(t *testing.T) {
	_, err := newTestComposer(t, "cv7_ins_ublox_f9p_headless").Compose(map[string]string{
		"rviz":  "true",
		"bogus": "1",
		"ntrip": "true",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUndeclaredArgument))
	assert.Contains(t, err.Error(), "bogus, rviz")
}

// TestCompose_Headless verifies the variant without URDF or visualization.
func TestCompose_Headless(t *testing.T) {
	c := newTestComposer(t, "cv7_ins_ublox_f9p_headless")
	assert.Len(t, c.Declarations(), 11)

	plan, err := c.Compose(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"microstrain_inertial_driver", "ublox_f9p"}, nodeNames(plan.Nodes))
	assert.False(t, plan.HasNode("robot_state_publisher"))

	_, ok := plan.Argument("rviz")
	assert.False(t, ok)
}

// TestCompose_SkippedReason verifies that skipped nodes keep declaration
// order and carry a readable reason.
func TestCompose_SkippedReason(t *testing.T) {
	plan, err := newTestComposer(t, DefaultVariant).Compose(map[string]string{"rviz": "no"})
	require.NoError(t, err)

	require.Len(t, plan.Skipped, 2)
	assert.Equal(t, "ntrip_client", plan.Skipped[0].Node.DisplayName())
	assert.Equal(t, `ntrip is "false", not "true"`, plan.Skipped[0].Reason)
	assert.Equal(t, "rviz2", plan.Skipped[1].Node.DisplayName())
	assert.Equal(t, `rviz is "no", not "true"`, plan.Skipped[1].Reason)
}

func TestNewComposer_UnknownVariant(t *testing.T) {
	_, err := NewComposer(Options{Variant: "gq7"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestVariants(t *testing.T) {
	infos := Variants()
	require.Len(t, infos, 2)
	assert.Equal(t, "cv7_ins_ublox_f9p", infos[0].Name)
	assert.Equal(t, "cv7_ins_ublox_f9p_headless", infos[1].Name)
}

// TestDeclarations_ReturnsCopy verifies callers cannot mutate the
// composer's declarations.
func TestDeclarations_ReturnsCopy(t *testing.T) {
	c := newTestComposer(t, DefaultVariant)
	decls := c.Declarations()
	decls[0].Default = "mutated"

	assert.Equal(t, "/dev/microstrain_main", c.Declarations()[0].Default)
}
