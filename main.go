package main

import (
	"github.com/notargets/mortar/cmd"
)

func main() {
	cmd.Execute()
}
