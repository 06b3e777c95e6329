package launch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/inslaunch/inslaunch/internal/model"
)

// PackageName is the ROS package whose share directory holds the default
// parameter, URDF, and RViz files.
const PackageName = "microstrain_ros_examples"

// DefaultVariant is used when the caller does not pick one.
const DefaultVariant = "cv7_ins_ublox_f9p"

// ErrUnknownVariant is returned when a variant name is not registered.
var ErrUnknownVariant = errors.New("unknown launch variant")

// Topic names shared between the GNSS driver, the NTRIP client, and the
// inertial driver's external aiding inputs.
const (
	topicExtPosition = "ext/llh_position"
	topicExtVelocity = "ext/velocity_enu"
)

// NodeTemplate is a node declaration whose string fields may contain
// substitution expressions. Remap pairs are fixed literals.
type NodeTemplate struct {
	Package    string
	Executable string
	Name       string
	Namespace  string
	Output     model.OutputMode
	Remaps     []model.Remap

	// ParamsFile is an expression for the shared parameter file. Empty
	// means the node takes no parameter file.
	ParamsFile string

	// Inline parameters; values are expressions.
	Inline []model.InlineParameter

	// Arguments and Devices are expressions.
	Arguments []string
	Devices   []string

	// Display marks nodes that open windows.
	Display bool

	Condition *model.Condition
}

// Description is one launch unit: argument declarations followed by node
// templates, both in declaration order.
type Description struct {
	Variant   string
	Summary   string
	Arguments []model.LaunchArgument
	Nodes     []NodeTemplate
}

// VariantInfo describes a registered variant for listings.
type VariantInfo struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type variantDef struct {
	summary string
	build   func(shareDir string) Description
}

const (
	fullSummary     = "CV7-INS with u-blox F9P aiding, robot description, optional NTRIP and RViz"
	headlessSummary = "CV7-INS with u-blox F9P aiding and optional NTRIP, no URDF or visualization"
)

var variants = map[string]variantDef{
	"cv7_ins_ublox_f9p":          {summary: fullSummary, build: fullDescription},
	"cv7_ins_ublox_f9p_headless": {summary: headlessSummary, build: headlessDescription},
}

// Variants lists the registered variants sorted by name.
func Variants() []VariantInfo {
	infos := make([]VariantInfo, 0, len(variants))
	for name, def := range variants {
		infos = append(infos, VariantInfo{Name: name, Summary: def.summary})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Describe builds the Description of the named variant. shareDir is the
// installed share directory of PackageName.
func Describe(variant, shareDir string) (Description, error) {
	def, ok := variants[variant]
	if !ok {
		return Description{}, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return def.build(shareDir), nil
}

// sensorArguments are the declarations common to every variant, in the
// order the upstream launch file declares them.
func sensorArguments() []model.LaunchArgument {
	return []model.LaunchArgument{
		// MicroStrain parameters
		{Name: "microstrain_port", Default: "/dev/microstrain_main", Description: "The port that the CV7-INS is connected to"},
		{Name: "microstrain_baudrate", Default: "115200", Description: "The baudrate to open the port at"},

		// u-blox parameters
		{Name: "ublox_f9p_port", Default: "/dev/ttyACM1", Description: "The port that the ublox F9P is connected to"},

		// NTRIP client parameters
		{Name: "ntrip", Default: "false", Description: "Whether or not to start an NTRIP client for differential corrections"},
		{Name: "ntrip_host", Default: "20.185.11.35", Description: "The host name or IP of the NTRIP caster you want to connect to"},
		{Name: "ntrip_port", Default: "2101", Description: "The port of the NTRIP caster you want to connect to"},
		{Name: "ntrip_mountpoint", Default: "VRS_RTCM3", Description: "The mountpoint on the NTRIP caster you want to connect to"},
		{Name: "ntrip_username", Default: "user", Description: "Username to use to authenticate with the NTRIP caster"},
		{Name: "ntrip_password", Default: "pass", Description: "Password to use to authenticate with the NTRIP caster", Secret: true},
		{Name: "ntrip_ssl", Default: "false", Description: "Whether or not to connect using SSL to the NTRIP caster"},
	}
}

func paramsFileArgument(shareDir string) model.LaunchArgument {
	return model.LaunchArgument{
		Name:        "params_file",
		Default:     filepath.Join(shareDir, "config", "cv7_ins_ublox_f9p.yml"),
		Description: "Path to file that contains user defined parameters",
		File:        true,
	}
}

func inertialNode() NodeTemplate {
	return NodeTemplate{
		Package:    "microstrain_inertial_driver",
		Executable: "microstrain_inertial_driver_node",
		Name:       "microstrain_inertial_driver",
		Output:     model.OutputScreen,
		ParamsFile: "$(var params_file)",
		Devices:    []string{"$(var microstrain_port)"},
	}
}

func gnssNode(remaps []model.Remap) NodeTemplate {
	return NodeTemplate{
		Package:    "ublox_gps",
		Executable: "ublox_gps_node",
		Name:       "ublox_f9p",
		Output:     model.OutputScreen,
		Remaps:     remaps,
		ParamsFile: "$(var params_file)",
		Devices:    []string{"$(var ublox_f9p_port)"},
	}
}

func ntripNode() NodeTemplate {
	return NodeTemplate{
		Package:    "ntrip_client",
		Executable: "ntrip_ros.py",
		Name:       "ntrip_client",
		Output:     model.OutputScreen,
		// The F9P publishes fixes rather than NMEA, so the client listens on
		// the same topic the inertial driver does.
		Remaps:     []model.Remap{{From: "fix", To: topicExtPosition}},
		ParamsFile: "$(var params_file)",
		Condition:  &model.Condition{Argument: "ntrip", Equals: "true"},
	}
}

// GNSSRemaps returns the fixed remap list of the GNSS node. Every variant
// uses the same list.
func GNSSRemaps() []model.Remap {
	return []model.Remap{
		{From: "fix", To: topicExtPosition},
		{From: "fix_velocity", To: topicExtVelocity},

		// Newer driver releases prefix the topics with the node name.
		{From: "ublox_f9p/fix", To: topicExtPosition},
		{From: "ublox_f9p/fix_velocity", To: topicExtVelocity},

		// Corrections arrive on the global topic; the driver reads them
		// from its own namespace.
		{From: "/rtcm", To: "rtcm"},
	}
}

func fullDescription(shareDir string) Description {
	args := sensorArguments()
	args = append(args,
		model.LaunchArgument{Name: "rviz", Default: "true", Description: "Whether or not to start Rviz to view the sensor"},
		paramsFileArgument(shareDir),
		model.LaunchArgument{
			Name:        "robot_urdf_file",
			Default:     filepath.Join(shareDir, "urdf", "cv7_ins_ublox_f9p.urdf.xacro"),
			Description: "Path to the URDF file that will represent your robot",
			File:        true,
		},
		model.LaunchArgument{
			Name:        "robot_description_command",
			Default:     "$(find-exec xacro) $(var robot_urdf_file)",
			Description: "Command whose output is published as the robot description",
		},
	)

	rvizFile := filepath.Join(shareDir, "rviz", "cv7_ins_ublox_f9p.rviz")

	return Description{
		Variant:   "cv7_ins_ublox_f9p",
		Summary:   fullSummary,
		Arguments: args,
		Nodes: []NodeTemplate{
			inertialNode(),
			gnssNode(GNSSRemaps()),
			{
				Package:    "robot_state_publisher",
				Executable: "robot_state_publisher",
				Output:     model.OutputLog,
				ParamsFile: "$(var params_file)",
				Inline: []model.InlineParameter{
					{Name: "robot_description", Value: "$(var robot_description_command)", FromCommand: true},
				},
			},
			ntripNode(),
			{
				Package:    "rviz2",
				Executable: "rviz2",
				Output:     model.OutputLog,
				ParamsFile: "$(var params_file)",
				Arguments:  []string{"-d", rvizFile},
				Display:    true,
				Condition:  &model.Condition{Argument: "rviz", Equals: "true"},
			},
		},
	}
}

func headlessDescription(shareDir string) Description {
	args := sensorArguments()
	args = append(args, paramsFileArgument(shareDir))

	return Description{
		Variant:   "cv7_ins_ublox_f9p_headless",
		Summary:   headlessSummary,
		Arguments: args,
		Nodes: []NodeTemplate{
			inertialNode(),
			gnssNode(GNSSRemaps()),
			ntripNode(),
		},
	}
}
