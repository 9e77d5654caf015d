package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/pathtaint/cmd"
	"github.com/xkilldash9x/pathtaint/internal/observability"
)

const panicLogFile = "panic.log"

const (
	exitOK       = 0
	exitError    = 1
	exitFindings = 2
)

var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	observability.Sync()

	osExit(exitCode(err, os.Stderr))
}

// exitCode maps the command result onto the process status. Interruption is
// a clean exit.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Scan interrupted.")
		return exitOK
	case errors.Is(err, cmd.ErrFindingsDetected):
		fmt.Fprintln(stderr, err)
		return exitFindings
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}
}

// handlePanic writes the panic and its stack to panicLogFile and exits with
// status 1.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()

		panicMessage := fmt.Sprintf("pathtaint %s panic: %v\n\n%s", cmd.Version, r, debug.Stack())
		if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(exitError)
			return
		}

		fmt.Fprintf(os.Stderr, "CRASH DETECTED: %v\n", r)
		fmt.Fprintf(os.Stderr, "Details logged to %s\n", panicLogFile)
		osExit(exitError)
	}
}
