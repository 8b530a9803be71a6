package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	svc "slicer/internal/services"
)

// Exit codes: 0 success, 2 for recoverable states (worker unavailable,
// batch already running) so wrapping scripts can retry, 1 for everything
// else. A context cancel exits quietly.
func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	if svc.IsRecoverable(err) {
		os.Exit(2)
	}
	os.Exit(1)
}
