package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/testwise/runcore/codegen"
	"github.com/testwise/runcore/errext"
	"github.com/testwise/runcore/errext/exitcodes"
	"github.com/testwise/runcore/evidence"
)

// newCompileCommand builds "runcore compile <actions.json>": turn an
// exported actions file into the automation script without touching the
// backend or a browser. Useful for inspecting what a testcase will do.
func newCompileCommand(root *rootCommand) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile <actions.json>",
		Short: "compile an exported actions file into an automation script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := afero.ReadFile(root.fs, args[0])
			if err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
			}
			var payload evidence.ActionsResponse
			if err := json.Unmarshal(raw, &payload); err != nil {
				return errext.WithExitCodeIfNone(
					fmt.Errorf("parsing %q: %w", args[0], err),
					exitcodes.InvalidConfig,
				)
			}

			// Offline compilation references uploads by their key; the
			// preprocessor fills real paths in at run time.
			files := map[string]string{}
			for _, a := range payload.Actions {
				for _, d := range a.Datas {
					if d.FileUpload != nil {
						files[d.FileUpload.Key()] = "__UPLOAD__/" + d.FileUpload.Key()
					}
				}
			}

			script, err := codegen.Compile(payload.BasicAuth, payload.Actions, files)
			if err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.CompilationFailed)
			}
			if script == "" {
				root.logger.Warn("the actions file is empty, nothing to compile")
				return nil
			}
			if err := codegen.Validate(script); err != nil {
				return errext.WithExitCodeIfNone(
					fmt.Errorf("generated script does not parse: %w", err),
					exitcodes.CompilationFailed,
				)
			}

			if output == "" || output == "-" {
				fmt.Fprint(cmd.OutOrStdout(), script)
				return nil
			}
			return afero.WriteFile(root.fs, output, []byte(script), 0o644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the script here instead of stdout")
	return cmd
}
