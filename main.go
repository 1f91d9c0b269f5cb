// The main package for the testimony-tracker executable.
package main

import (
	"github.com/JakeFAU/testimony-tracker/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
