package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/migrate"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Author migrations and inspect applied ones",
	}
	cmd.AddCommand(c.migrateStatusCmd(), c.migrateNewCmd(), c.migrateSetupCmd())
	return cmd
}

func (c *cli) migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List the migration records of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd, func(ctx context.Context, drv dialect.Driver) error {
				eng, err := migrate.NewEngine(drv, nil, migrate.WithLogger(c.log))
				if err != nil {
					return err
				}
				recs, err := eng.Records(ctx)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSTATE\tAPPLIED AT")
				for _, r := range recs {
					state, at := migrate.Started, "-"
					if r.Applied() {
						state, at = migrate.Applied, r.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, state, at)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) migrateSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Assert the schema of the migration records in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd, func(ctx context.Context, drv dialect.Driver) error {
				eng, err := migrate.NewEngine(drv, nil, migrate.WithLogger(c.log))
				if err != nil {
					return err
				}
				return eng.EnsureSchema(ctx)
			})
		},
	}
}

func (c *cli) migrateNewCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Write a migration moving the schema from one file to another",
		Long: "Generates a Go migration file in the configured migrations directory.\n" +
			"Without --from the migration creates the whole schema of --to.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev := compiler.MustParse("")
			if from != "" {
				var err error
				if prev, err = parseFile(cmd, from); err != nil {
					return err
				}
			}
			cur, err := parseFile(cmd, to)
			if err != nil {
				return err
			}
			gen, err := migrate.Generate(migrate.GenerateOptions{
				Dir:      c.cfg.Migrations.Dir,
				Package:  c.cfg.Migrations.Package,
				Name:     args[0],
				Previous: prev,
				Current:  cur,
			})
			if err != nil {
				return err
			}
			c.log.Info("migration written", "name", gen.Name, "path", gen.Path)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), gen.Path)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "schema file of the current store")
	cmd.Flags().StringVar(&to, "to", "", "schema file of the target")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
