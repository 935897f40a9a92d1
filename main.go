package main

import (
	"os"

	"github.com/auto-blog/publisher/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
