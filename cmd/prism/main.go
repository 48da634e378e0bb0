// Command prism serves widget sessions to notebook hosts.
package main

import (
	"fmt"
	"os"

	"github.com/go-prism/prism/cmd/prism/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
