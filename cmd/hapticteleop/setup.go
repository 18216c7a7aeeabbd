package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gwillem/hapticteleop/pkg/robot"
)

type SetupCommand struct {
	Leader   string        `long:"leader" description:"Serial port of the leader arm (default: first arm found)"`
	Duration time.Duration `long:"duration" default:"20s" description:"How long to record each arm's range of motion"`
}

func (c *SetupCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	log := newLogger()

	// Step 1: Scan for arms
	fmt.Println("Scanning for robot arms...")
	ports, err := robot.FindArms(ctx)
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	if len(ports) < 2 {
		return errors.New("need a leader and at least one follower SO-101 arm, make sure they are connected and powered on")
	}
	for _, port := range ports {
		fmt.Printf("  Found SO-101 arm on %s\n", port)
	}

	cfg := assignRoles(ports, c.Leader)

	// Step 2: Calibrate every arm
	arms := append([]*robot.ArmConfig{&cfg.Leader}, pointers(cfg.Followers)...)
	for i, arm := range arms {
		role := "leader"
		if i > 0 {
			role = fmt.Sprintf("follower %d", i-1)
		}
		fmt.Printf("\nCalibrating %s on %s.\n", role, arm.Port)
		fmt.Printf("Move every joint to its minimum and maximum within %s.\n", c.Duration)

		cal, err := robot.RecordCalibration(ctx, arm.Port, c.Duration)
		if err != nil {
			return fmt.Errorf("calibrate %s: %w", role, err)
		}
		arm.Calibration = cal
		log.Debug("arm calibrated", "role", role, "port", arm.Port)

		// Save after every arm
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Printf("\nSetup complete. Configuration saved to %s\n", robot.DefaultConfigFile)
	fmt.Println("Start teleoperation with: hapticteleop teleoperate")
	return nil
}

// assignRoles makes leader (or the first port) the leader and every other
// port a follower.
func assignRoles(ports []string, leader string) *robot.Config {
	if leader == "" {
		leader = ports[0]
	}
	cfg := &robot.Config{Leader: robot.ArmConfig{Port: leader}}
	for _, port := range ports {
		if port != leader {
			cfg.Followers = append(cfg.Followers, robot.ArmConfig{Port: port})
		}
	}
	return cfg
}

func pointers(arms []robot.ArmConfig) []*robot.ArmConfig {
	out := make([]*robot.ArmConfig, len(arms))
	for i := range arms {
		out[i] = &arms[i]
	}
	return out
}
