package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/testwise/runcore/errext"
	"github.com/testwise/runcore/errext/exitcodes"
	"github.com/testwise/runcore/evidence"
	"github.com/testwise/runcore/execution"
	"github.com/testwise/runcore/fieldcrypt"
)

type runFlags struct {
	backendURL string
	evidenceID string
	projectID  string
	browser    string
	sandboxDir string
	save       bool
}

// newRunCommand builds "runcore run <testcase-id>": fetch the recorded
// actions, run them in the sandbox and, with --save, reconcile the evidence
// record on the backend.
func newRunCommand(root *rootCommand) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <testcase-id>",
		Short: "execute a recorded testcase in the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flags.backendURL != "" {
				cfg.BackendURL = flags.backendURL
			}
			if flags.browser != "" {
				cfg.Browser = flags.browser
			}
			if flags.sandboxDir != "" {
				cfg.SandboxDir = flags.sandboxDir
			}
			if err := cfg.validateRemote(); err != nil {
				return err
			}
			keys, err := cfg.keyStore()
			if err != nil {
				return err
			}

			client := evidence.NewClient(root.logger, root.fs, cfg.APIToken, cfg.BackendURL)
			coordinator := execution.NewCoordinator(
				root.logger,
				client,
				client,
				keys,
				fieldcrypt.GCMCipher{},
				&execution.SubprocessRunner{ExecPath: cfg.RunnerPath},
				root.fs,
				cfg.SandboxDir,
				cfg.RunTimeout,
			)

			result := coordinator.ExecuteTestcase(cmd.Context(), execution.TestcaseOptions{
				TestcaseID: args[0],
				EvidenceID: flags.evidenceID,
				ProjectID:  flags.projectID,
				Browser:    cfg.Browser,
				Save:       flags.save,
			})
			printResult(cmd, result)

			if !result.Success {
				return errext.WithExitCodeIfNone(
					fmt.Errorf("testcase %s finished as %s", args[0], result.Status),
					exitcodes.RunFailed,
				)
			}
			return nil
		},
	}

	cmd.Flags().AddFlagSet(runCmdFlagSet(&flags))
	return cmd
}

func runCmdFlagSet(flags *runFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVar(&flags.backendURL, "backend", "", "management API base URL")
	fs.StringVar(&flags.evidenceID, "evidence", "", "evidence record to reconcile the outcome onto")
	fs.StringVar(&flags.projectID, "project", "", "project the testcase belongs to, selects the decryption key")
	fs.StringVar(&flags.browser, "browser", "", "browser engine to run with")
	fs.StringVar(&flags.sandboxDir, "sandbox-dir", "", "working directory for scripts, uploads and run output")
	fs.BoolVar(&flags.save, "save", false, "push status transitions and results to the backend")
	return fs
}

func printResult(cmd *cobra.Command, result execution.TestExecutionResult) {
	w := cmd.OutOrStdout()

	verdict := color.New(color.FgRed, color.Bold).Sprint("FAILED")
	switch result.Status {
	case evidence.StatusPassed:
		verdict = color.New(color.FgGreen, color.Bold).Sprint("PASSED")
	case evidence.StatusDraft:
		verdict = color.New(color.FgYellow).Sprint("DRAFT (no actions)")
	}
	fmt.Fprintf(w, "\n%s in %s\n", verdict, result.ExecutionTime.Round(10*time.Millisecond))

	if result.Logs != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.Faint).Sprint("--- run output ---"), result.Logs)
	}
	if result.VideoURL != "" {
		fmt.Fprintf(w, "video:      %s\n", result.VideoURL)
	}
	for _, p := range result.ImageURLs {
		fmt.Fprintf(w, "image:      %s\n", p)
	}
	for _, p := range result.DatabaseFileURLs {
		fmt.Fprintf(w, "db export:  %s\n", p)
	}
	for _, p := range result.APIFileURLs {
		fmt.Fprintf(w, "api export: %s\n", p)
	}
}
