package main

import (
	"github.com/dyike/cortexanalyst/internal/cli"
)

func main() {
	cli.Run()
}
