// memhook: hook installer and executors for a local memory worker.
//
// memhook installs small wrapper scripts into an editor's hook manifest
// and, when the editor fires an event, runs as the hook process that
// forwards the event to the worker.
//
// Usage:
//
//	memhook install project            # hooks for this workspace
//	memhook install user --host claude # hooks for every claude session
//	memhook uninstall project
//	memhook status --json
//	memhook mcp                        # MCP server (stdio transport)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	root := newRootCmd(defaultApp())
	err := root.ExecuteContext(ctx)
	cancel()
	os.Exit(exitCode(root, err))
}

// exitCode reports err the way the CLI promises: silent errors were
// already printed, usage errors exit 2, everything else exits 1.
func exitCode(root *cobra.Command, err error) int {
	if err == nil {
		return 0
	}

	var silent *SilentError
	var coded *ExitCodeError
	switch {
	case errors.As(err, &silent):
	case strings.Contains(err.Error(), "unknown command"):
		showSuggestion(root)
		return 2
	default:
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	if errors.As(err, &coded) {
		return coded.ExitCode
	}
	return 1
}

func showSuggestion(cmd *cobra.Command) {
	fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())

	arg := ""
	if len(os.Args) > 1 {
		arg = os.Args[1]
	}
	msg := fmt.Sprintf("Unknown command: %s %s", cmd.CommandPath(), arg)
	if s := cmd.SuggestionsFor(arg); len(s) > 0 {
		msg += fmt.Sprintf(". Did you mean %q?", s[0])
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nError: %s\n", msg)
}
