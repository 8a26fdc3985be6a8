package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/spool-tools/spool/core/config"
)

var version = "0.2.0"

// Report prints the top-level error. Terse mode prints a single summary
// line; verbose mode also walks the cause chain.
func Report(w io.Writer, err error, verbose bool) {
	prefix := color.New(color.FgRed, color.Bold).Sprint("error:")
	fmt.Fprintf(w, "%s %v\n", prefix, err)

	if !verbose {
		fmt.Fprintf(w, "(set %s=1 for details)\n", config.EnvVerbose)
		return
	}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(w, "  caused by: %v\n", cause)
	}
}
