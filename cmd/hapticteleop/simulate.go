package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gwillem/hapticteleop/pkg/robot"
	"github.com/gwillem/hapticteleop/pkg/teleop"
)

type SimulateCommand struct {
	DOF        int           `long:"dof" default:"7" description:"Joints per arm"`
	Followers  int           `long:"followers" default:"1" description:"Number of simulated followers"`
	Task       string        `long:"task" default:"force_feedback" description:"Teleoperation task (see 'tasks')"`
	Duration   time.Duration `long:"duration" default:"5s" description:"How long to run"`
	Push       float64       `long:"push" default:"3" description:"Operator torque on the leader's first joint, N m"`
	Wall       float64       `long:"wall" default:"0.3" description:"Position of a wall on the followers' first joint, rad"`
	Stiffness  float64       `long:"stiffness" default:"200" description:"Wall stiffness, N m/rad"`
	NoFeedback bool          `long:"no-feedback" description:"Start with force feedback off"`
	Session    string        `long:"session" description:"YAML session config"`
}

func (c *SimulateCommand) Execute(args []string) error {
	log := newLogger()

	cfg := teleop.DefaultConfig(c.DOF)
	if c.Session != "" {
		var err error
		if cfg, err = teleop.LoadConfig(c.Session, c.DOF); err != nil {
			return fmt.Errorf("load session config: %w", err)
		}
	}
	cfg.Task = c.Task
	cfg.ForceFeedback = !c.NoFeedback

	// start the leader in the middle of its range
	mid := robot.Zeros(c.DOF)
	for i := range mid {
		mid[i] = (cfg.Limits.Min[i] + cfg.Limits.Max[i]) / 2
	}
	leaderSim, err := robot.NewSimDriver(robot.SimConfig{DOF: c.DOF, Friction: 2, Initial: mid})
	if err != nil {
		return err
	}
	followerSims := make([]*robot.SimDriver, c.Followers)
	followers := make([]robot.Handle, c.Followers)
	for i := range followers {
		followerSims[i], err = robot.NewSimDriver(robot.SimConfig{
			DOF:      c.DOF,
			Friction: 1,
			Walls:    []robot.Wall{{Joint: 0, Position: c.Wall, Direction: 1, Stiffness: c.Stiffness}},
		})
		if err != nil {
			return err
		}
		followers[i] = robot.NewLocalHandle(fmt.Sprintf("follower %d", i), followerSims[i])
	}

	loop, err := teleop.New(robot.NewLocalHandle("leader", leaderSim), followers, cfg, teleop.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Duration)
	defer cancel()

	push := robot.Zeros(c.DOF)
	push[0] = c.Push
	leaderSim.SetOperatorTorque(push)

	if err := loop.Start(ctx); err != nil {
		return err
	}
	<-loop.Done()
	if err := loop.Err(); err != nil {
		return err
	}

	fmt.Printf("leader     q0=%+.4f  tau0=%+.3f\n", leaderSim.Position()[0], leaderSim.LastTorque()[0])
	for i, f := range followerSims {
		fmt.Printf("follower %d q0=%+.4f  tau0=%+.3f\n", i, f.Position()[0], f.LastTorque()[0])
	}
	return nil
}
