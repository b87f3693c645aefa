package main

import (
	"github.com/pauliuspaskevicius/libARUtils/cmd"
)

func main() {
	cmd.Execute()
}
