package main

import "github.com/goliatone/r6-tools/cmd/r6tools/cmd"

func main() {
	cmd.Execute()
}
