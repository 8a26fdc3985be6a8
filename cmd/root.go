package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spool-tools/spool/core"
	"github.com/spool-tools/spool/core/args"
	"github.com/spool-tools/spool/core/config"
	"github.com/spool-tools/spool/core/logger"
)

// rootCmd is the whole CLI: spool has no subcommands, and the -exec grammar
// is not flag-shaped, so cobra's flag parsing is disabled and raw argv goes
// straight to the core parser. Help and version are handled here as
// collaborators before the grammar runs.
var rootCmd = &cobra.Command{
	Use:   `spool [-exec command [args...] \;] [-exec{} command [args... {} ...] \;]`,
	Short: "Capture stdin, replay it to stdout, and feed it to commands",
	Long: `spool reads all of standard input, replays it verbatim to standard
output, and optionally hands the captured data to child commands.

With -exec the child receives the data on its standard input. With -exec{}
every {} argument is replaced by a path to the data. Each command list ends
at a literal ";" (escape it from your shell) or at the end of the arguments.

Configuration (buffering strategy, hardening) is read from the file named by
` + config.EnvConfig + `. Set ` + config.EnvVerbose + `=1 for detailed errors
and debug logging.`,
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(cmd *cobra.Command, argv []string) error {
		if len(argv) > 0 {
			switch argv[0] {
			case "--help", "-h":
				return cmd.Help()
			case "--version":
				fmt.Fprintf(cmd.OutOrStdout(), "spool %s\n", version)
				return nil
			}
		}

		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		log := logger.New(cmd.ErrOrStderr(), config.Verbose())
		defer log.Sync()

		sp := &core.Spool{
			Config: cfg,
			Log:    log,
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
		}
		result, err := sp.Run(argv)
		if err != nil {
			return err
		}

		// Exit policy: a failed spawn or wait makes the whole run
		// non-zero, a child's own exit code does not.
		if n := result.ChildFailures(); n > 0 {
			return fmt.Errorf("%d of %d exec entries failed", n, len(result.Children))
		}
		return nil
	},
}

// Execute runs the CLI and exits non-zero on failure. Usage errors exit
// with 2, everything else with 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		Report(os.Stderr, err, config.Verbose())

		var parseErr *args.ParseError
		if errors.As(err, &parseErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
