package main

import (
	"fmt"

	"github.com/gwillem/hapticteleop/pkg/teleop"
)

type TasksCommand struct{}

func (c *TasksCommand) Execute(args []string) error {
	for _, name := range teleop.TaskNames() {
		fmt.Println(name)
	}
	return nil
}
