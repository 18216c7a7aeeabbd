package main

import (
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Verbose bool `short:"v" long:"verbose" description:"Log debug messages"`

	Setup       SetupCommand       `command:"setup" description:"Scan for arms and record their calibration"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Start teleoperation of SO-101 arms"`
	Simulate    SimulateCommand    `command:"simulate" alias:"sim" description:"Run a session on simulated arms"`
	Tasks       TasksCommand       `command:"tasks" description:"List teleoperation tasks"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "hapticteleop - leader/follower teleoperation with force feedback"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
