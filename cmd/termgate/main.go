package main

import "github.com/runthings/termgate/cmd/termgate/cmd"

func main() {
	cmd.Execute()
}
