// Command marksync reconciles browser bookmarks against a canonical store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/marksync/internal/cli"
)

// Version information populated at build time.
var version = "dev"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = version

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	// Flag and argument errors from cobra, not yet reported.
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(cli.ExitCommandError)
}
