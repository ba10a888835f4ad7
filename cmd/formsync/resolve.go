package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <file> [path[=value]...]",
		Short: "Resolve scope paths against a snapshot",
		Long: `Resolve scope paths against a snapshot file and print the result.

A bare path materializes the scope chain it names: missing mappings
and sequence elements are created along the way. A path=value
argument writes the literal at the path. The resulting snapshot is
printed as JSON.

Examples:
  formsync resolve order.json items[0]/qty
  formsync resolve order.json "email=ada@example.com" items[]/sku=A1
  formsync resolve order.yaml "billing/address/city=Oslo"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(args[0], args[1:])
		},
	}

	return cmd
}

func runResolve(file string, exprs []string) error {
	root, err := loadSnapshot(file)
	if err != nil {
		return err
	}
	if root == nil {
		root = formdata.FormData{}
	}

	for _, expr := range exprs {
		if path, raw, ok := strings.Cut(expr, "="); ok {
			if err := formdata.Put(root, path, parseScalar(raw)); err != nil {
				return err
			}
			continue
		}
		if _, err := formdata.Resolve(root, expr, nil); err != nil {
			return err
		}
	}

	return printJSON(root)
}
