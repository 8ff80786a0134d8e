package main

import (
	"os"

	"github.com/noah-isme/task-scheduler-api/internal/cli"
	_ "github.com/noah-isme/task-scheduler-api/internal/optimizer/backends"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
