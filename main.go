package main

import (
	"os"

	"github.com/crosscheck-ci/crosscheck/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
