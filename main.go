package main

import "github.com/testwise/runcore/cmd"

func main() {
	cmd.Execute()
}
