package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/testwise/runcore/errext"
	"github.com/testwise/runcore/errext/exitcodes"
	"github.com/testwise/runcore/lib/consts"
)

type rootCommand struct {
	cmd    *cobra.Command
	logger *logrus.Logger
	fs     afero.Fs

	verbose bool
	envFile string
}

func newRootCommand() *rootCommand {
	c := &rootCommand{
		logger: logrus.New(),
		fs:     afero.NewOsFs(),
	}
	c.logger.SetOutput(os.Stderr)

	c.cmd = &cobra.Command{
		Use:               "runcore",
		Short:             "sandboxed testcase execution core",
		Long:              consts.Banner,
		Version:           consts.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRun,
	}
	c.cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	c.cmd.PersistentFlags().StringVar(&c.envFile, "env-file", "", "load environment variables from this file")

	c.cmd.AddCommand(
		newRunCommand(c),
		newCompileCommand(c),
		newDedupeCommand(c),
		newVersionCommand(c),
	)
	return c
}

func (c *rootCommand) persistentPreRun(cmd *cobra.Command, _ []string) error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("loading env file %q: %w", c.envFile, err),
				exitcodes.InvalidConfig,
			)
		}
	} else {
		// A missing default .env is fine.
		_ = godotenv.Load()
	}

	c.logger.SetOutput(cmd.ErrOrStderr())
	if c.verbose {
		c.logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// Execute runs the CLI and exits the process with the code the failing
// command attached, if any.
func Execute() {
	c := newRootCommand()
	err := c.cmd.Execute()
	if err == nil {
		return
	}

	exitCode := exitcodes.GenericError
	var ecerr errext.HasExitCode
	if errors.As(err, &ecerr) {
		exitCode = ecerr.ExitCode()
	}

	errText := err.Error()
	var herr errext.HasHint
	if errors.As(err, &herr) {
		errText += "\n" + color.New(color.Faint).Sprint(herr.Hint())
	}
	c.logger.Error(errText)
	os.Exit(int(exitCode))
}
