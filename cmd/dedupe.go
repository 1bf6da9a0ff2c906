package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/testwise/runcore/dedup"
	"github.com/testwise/runcore/errext"
	"github.com/testwise/runcore/errext/exitcodes"
	"github.com/testwise/runcore/evidence"
)

// newDedupeCommand builds "runcore dedupe <actions.json>": report groups of
// recorded elements that look like the same DOM node and, with --assign,
// backfill a shared element id into the actions file.
func newDedupeCommand(root *rootCommand) *cobra.Command {
	var (
		threshold float64
		assign    bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "dedupe <actions.json>",
		Short: "find recorded elements that are likely the same DOM node",
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

			groups := dedup.FindGroups(payload.Actions, threshold)
			w := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(w, "no duplicate elements found")
				return nil
			}

			for i, g := range groups {
				fmt.Fprintf(w, "%s (similarity %.2f)\n",
					color.New(color.Bold).Sprintf("group %d", i+1), g.SimilarityScore)
				for _, m := range g.Members {
					fmt.Fprintf(w, "  action %d [%s] %s\n", m.ActionIndex+1, m.ActionType, m.Description)
				}
			}

			if !assign {
				return nil
			}
			dedup.AssignElementIDs(groups)
			updated, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			updated = append(updated, '\n')
			dest := output
			if dest == "" {
				dest = args[0]
			}
			if err := afero.WriteFile(root.fs, dest, updated, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(w, "\nwrote shared element ids to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", dedup.DefaultThreshold, "minimum similarity for two elements to group")
	cmd.Flags().BoolVar(&assign, "assign", false, "backfill a shared element id per group and write the file back")
	cmd.Flags().StringVarP(&output, "output", "o", "", "with --assign, write here instead of overwriting the input")
	return cmd
}
