package main

import (
	"github.com/crosspostd/crosspost/server/config"
	"github.com/crosspostd/crosspost/server/datastore/mysql"
	"github.com/spf13/cobra"
)

func createPrepareCmd(configManager config.Manager) *cobra.Command {
	prepareCmd := &cobra.Command{
		Use:   "prepare",
		Short: "Subcommands for initializing crosspost infrastructure",
		Long: `
Subcommands for initializing crosspost infrastructure

To setup crosspost infrastructure, use one of the available commands.
`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help() //nolint:errcheck
		},
	}

	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Given correct database configurations, prepare the database for use",
		Run: func(cmd *cobra.Command, args []string) {
			config := configManager.LoadConfig()

			ds, err := mysql.New(config.Mysql)
			if err != nil {
				initFatal(err, "creating db connection")
			}
			defer ds.Close()

			current, latest, err := ds.MigrationStatus(cmd.Context())
			if err != nil {
				initFatal(err, "retrieving migration status")
			}
			if current == latest {
				cmd.Println("Migrations already up-to-date.")
				return
			}

			if err := ds.MigrateTables(cmd.Context()); err != nil {
				initFatal(err, "migrating db schema")
			}

			cmd.Println("Migrations completed.")
		},
	}

	prepareCmd.AddCommand(dbCmd)
	return prepareCmd
}
