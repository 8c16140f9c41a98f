// The main package for the weathercrawler executable.
package main

import (
	"github.com/JakeFAU/realtime-weather-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
