package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

func diffCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two snapshot files",
		Long: `Compare two snapshot files and print the changed paths.

Exit code is 0 when the snapshots match, 1 when they differ, and 2
on error, like diff(1).

Examples:
  formsync diff before.json after.json
  formsync diff before.yaml after.yaml --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args[0], args[1], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the diff as JSON")

	return cmd
}

func runDiff(oldFile, newFile string, asJSON bool) error {
	oldSnap, err := loadSnapshot(oldFile)
	if err != nil {
		return err
	}
	newSnap, err := loadSnapshot(newFile)
	if err != nil {
		return err
	}

	diff := formdata.Diff(oldSnap, newSnap)

	if asJSON {
		if err := printJSON(diff); err != nil {
			return err
		}
		if diff.HasDiff {
			return errDiffFound
		}
		return nil
	}

	if !diff.HasDiff {
		fmt.Println("No differences.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tOLD\tNEW")
	for _, path := range diff.Paths() {
		ch := diff.Diffs[path]
		fmt.Fprintf(w, "%s\t%s\t%s\n", path, formatValue(ch.Old), formatValue(ch.New))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return errDiffFound
}
