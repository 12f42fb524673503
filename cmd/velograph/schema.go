package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/migrate"
)

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and compare compiled schemas",
	}
	cmd.AddCommand(c.schemaDiffCmd(), c.schemaPullCmd())
	return cmd
}

func (c *cli) schemaDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Print the changes and the migration plan between two schema files",
		Long: "Compares two canonical schema files (\"-\" reads standard input) and prints\n" +
			"the added (+), changed (~) and removed (-) predicates and types followed by\n" +
			"the operations of the migration that moves the store from old to new.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := parseFile(cmd, args[0])
			if err != nil {
				return err
			}
			cur, err := parseFile(cmd, args[1])
			if err != nil {
				return err
			}
			return printDiff(cmd.OutOrStdout(), prev, cur)
		},
	}
}

func parseFile(cmd *cobra.Command, path string) (*compiler.Snapshot, error) {
	text, err := readFile(cmd, path)
	if err != nil {
		return nil, err
	}
	snap, err := compiler.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

func printDiff(w io.Writer, prev, cur *compiler.Snapshot) error {
	d := migrate.Diff(prev, cur)
	if d.Empty() {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}
	plan, err := migrate.NewPlan(d, cur)
	if err != nil {
		return err
	}
	fmt.Fprint(w, d.String())
	fmt.Fprintln(w, "\nup:")
	for _, op := range plan.Up {
		fmt.Fprintf(w, "  %s\n", op)
	}
	fmt.Fprintln(w, "down:")
	for _, op := range plan.Down {
		fmt.Fprintf(w, "  %s\n", op)
	}
	return nil
}

func (c *cli) schemaPullCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Print the schema of the store as canonical text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd, func(ctx context.Context, drv dialect.Driver) error {
				snap, err := compiler.Pull(ctx, drv)
				if err != nil {
					return err
				}
				c.log.Info("schema pulled", "types", len(snap.TypeNames()), "predicates", len(snap.PredicateNames()))
				if out == "" {
					_, err = io.WriteString(cmd.OutOrStdout(), snap.Text())
					return err
				}
				return os.WriteFile(out, []byte(snap.Text()), 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the schema to a file instead of standard output")
	return cmd
}
