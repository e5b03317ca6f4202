// Command hellod serves the hello_world module from a site file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "hellod:", err)
		os.Exit(1)
	}
}
