package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database indexes (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.migrate(cmd.Context()); err != nil {
				return errors.Wrap(err, "migrating database")
			}
			cli.printf("database indexes are up to date\n")
			return nil
		},
	}
}
