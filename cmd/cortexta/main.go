package main

import "github.com/dyike/cortexta/internal/cli"

func main() {
	cli.Run()
}
