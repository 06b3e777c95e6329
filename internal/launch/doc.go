// Package launch implements the launch composer for the CV7-INS + u-blox F9P
// sensor stack.
//
// A launch Description is a fixed, ordered list of argument declarations and
// node templates. The Composer resolves the declarations against caller
// overrides (an explicit override always beats the declared default),
// instantiates the node templates by evaluating their substitution
// expressions, and evaluates every node condition exactly once. The result is
// a model.LaunchPlan ready to be handed to an external process supervisor.
//
// Two variants are registered:
//
//   - cv7_ins_ublox_f9p: inertial driver, GNSS driver, robot state
//     publisher, optional NTRIP client and optional RViz
//   - cv7_ins_ublox_f9p_headless: inertial driver, GNSS driver and optional
//     NTRIP client, with no URDF or visualization
package launch
