// Command bpack inspects and creates bpack container files.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/eunmann/bpack/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, cli.ErrCheckFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
