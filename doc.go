// Package hapticteleop provides leader/follower teleoperation of robot arms
// with force feedback.
//
// A human moves the leader arm; every follower tracks the leader's joint
// positions. The external torque sensed on the first follower is filtered,
// shaped and played back on the leader so the operator feels contact.
//
// # Installation
//
//	go install github.com/gwillem/hapticteleop/cmd/hapticteleop@latest
//
// # Usage
//
// First, run setup to detect and calibrate SO-101 arms:
//
//	hapticteleop setup
//
// Then start teleoperation:
//
//	hapticteleop teleoperate
//
// Without hardware, run a session on simulated arms with a virtual wall:
//
//	hapticteleop simulate --duration 10s
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/hapticteleop: CLI with setup, teleoperate, simulate and tasks commands
//   - pkg/fault: Error classes shared by all packages
//   - pkg/robot: Arm handles and drivers, calibration, and configuration
//   - pkg/kalman: Kalman filter estimating the follower's external load
//   - pkg/control: Leader and follower policies
//   - pkg/teleop: Teleoperation loop, session config and tasks
package hapticteleop
