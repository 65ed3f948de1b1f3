package main

import (
	"os"

	"github.com/class-shrinker/cmd/cli/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
