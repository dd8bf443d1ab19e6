package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/dcode/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dcode: %v\n", err)
		os.Exit(1)
	}
}
