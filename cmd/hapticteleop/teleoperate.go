package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/gwillem/hapticteleop/pkg/teleop"
)

type TeleoperateCommand struct {
	Hz      int    `long:"hz" default:"60" description:"Control loop frequency"`
	Task    string `long:"task" default:"multibot" description:"Teleoperation task (see 'tasks')"`
	Session string `long:"session" description:"YAML session config with gains and filter settings"`
	Mirror  bool   `long:"mirror" description:"Mirror mode: invert shoulder_pan and wrist_roll positions"`
}

func (c *TeleoperateCommand) Execute(args []string) error {
	log := newLogger()

	// Load config
	cfg, err := robot.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'hapticteleop setup' first.")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\nRun 'hapticteleop setup' again.\n", err)
		os.Exit(1)
	}
	log.Info("loaded configuration", "file", robot.DefaultConfigFile, "followers", len(cfg.Followers))

	leaderArm, err := robot.NewArm(cfg.Leader.Port, cfg.Leader.Calibration)
	if err != nil {
		return fmt.Errorf("create leader arm: %w", err)
	}
	defer leaderArm.Close()

	followers := make([]robot.Handle, len(cfg.Followers))
	for i, fc := range cfg.Followers {
		arm, err := robot.NewArm(fc.Port, fc.Calibration)
		if err != nil {
			return fmt.Errorf("create follower %d arm: %w", i, err)
		}
		defer arm.Close()
		if arm.DOF() != leaderArm.DOF() {
			return fmt.Errorf("follower %d has %d calibrated motors, leader has %d", i, arm.DOF(), leaderArm.DOF())
		}
		followers[i] = robot.NewLocalHandle(fmt.Sprintf("follower %d", i), arm)
	}

	session, err := c.sessionConfig(leaderArm, cfg.Leader.Calibration)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the leader is moved by hand
	if err := leaderArm.Disable(ctx); err != nil {
		log.Warn("failed to disable leader torque", "err", err)
	}

	loop, err := teleop.New(robot.NewLocalHandle("leader", leaderArm), followers, session, teleop.WithLogger(log))
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		return err
	}
	fmt.Println("Teleoperation started, press Ctrl-C to stop.")

	<-loop.Done()
	return loop.Err()
}

// sessionConfig sizes the session to the leader arm and uses its calibrated
// range as joint limits. A session file replaces the --hz and --task flags.
func (c *TeleoperateCommand) sessionConfig(leader *robot.Arm, cal robot.Calibration) (teleop.Config, error) {
	dof := leader.DOF()
	cfg := teleop.DefaultConfig(dof)
	cfg.Task = c.Task
	cfg.SetHz(c.Hz)

	if c.Session != "" {
		var err error
		if cfg, err = teleop.LoadConfig(c.Session, dof); err != nil {
			return cfg, fmt.Errorf("load session config: %w", err)
		}
	}
	cfg.Limits.Min, cfg.Limits.Max = cal.Limits(leader.Motors())
	if c.Mirror {
		cfg.Mirror = mirroredJoints(leader.Motors())
	}
	return cfg, cfg.Validate()
}

// mirroredJoints returns the indices of the joints that turn the other way on
// a mirrored follower.
func mirroredJoints(motors []robot.MotorName) []int {
	var out []int
	for i, m := range motors {
		if m == robot.ShoulderPan || m == robot.WristRoll {
			out = append(out, i)
		}
	}
	return out
}
