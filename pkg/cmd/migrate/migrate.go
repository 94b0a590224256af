package migrate

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/regatta-scoring-go/pkg/config"
	dbmigrate "github.com/mpapenbr/regatta-scoring-go/pkg/db/migrate"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd.Context())
		},
	}
	cmdutil.AddLogFlags(cmd)
	return cmd
}

func startMigration(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, _ := cmdutil.SetupLogger()
	cmdutil.WaitForServices(ctx)

	opts := []dbmigrate.Option{dbmigrate.WithLogger(logger.Named("migrate"))}
	if config.MigrationSourceURL != "" {
		log.Info("Using migration files", log.String("source", config.MigrationSourceURL))
		opts = append(opts, dbmigrate.WithSourceURL(config.MigrationSourceURL))
	}
	return dbmigrate.MigrateDb(config.DB, opts...)
}
