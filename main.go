package main

import (
	"github.com/huddlehq/huddle/cmd"
	"github.com/huddlehq/huddle/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
