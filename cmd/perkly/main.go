package main

import "github.com/perkly/perkly/internal/cli"

func main() {
	cli.Execute()
}
