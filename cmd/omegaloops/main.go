package main

import (
	"go-omegaloops/cmd/omegaloops/cmd"
)

func main() {
	// Execute the root command (defined in cmd/root.go)
	cmd.Execute()
}
