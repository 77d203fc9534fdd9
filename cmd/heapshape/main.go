// ABOUTME: Entry point of the heapshape command line tool
// ABOUTME: Runs the root cobra command and maps failures to a non-zero exit code

package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
