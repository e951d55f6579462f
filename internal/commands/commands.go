// Package commands implements the dayplanctl operator CLI.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// New returns the root command.
func New() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "dayplanctl",
		Short: "Operate a dayplan store from the command line.",
		Long: `Operate a dayplan store from the command line.

Storage is selected with the same DAYPLAN_* variables the server reads
(DAYPLAN_STORAGE_BACKEND, DAYPLAN_DB_DSN, DAYPLAN_SQLITE_PATH, DAYPLAN_FS_DIR,
DAYPLAN_GCS_BUCKET, DAYPLAN_GCS_PREFIX). The same keys, lower-cased and without
the prefix, may be set in ~/.dayplan.yaml.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	AddCommands(cmd, v)
	return cmd
}

// AddCommands registers every subcommand on topLevel.
func AddCommands(topLevel *cobra.Command, v *viper.Viper) {
	addAPIKey(topLevel, v)
	addAgenda(topLevel, v)
	addExport(topLevel, v)
}
