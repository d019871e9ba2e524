package main

import (
	"os"

	"github.com/wuttem/gotsdb/cmd/gotsdb/commands"
	"github.com/wuttem/gotsdb/log"
)

func main() {
	cmd := commands.RootCommand()
	if err := cmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
