package main

import (
	"drain-audit/internal/cli"
)

func main() {
	cli.Execute()
}
