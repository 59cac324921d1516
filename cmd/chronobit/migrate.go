package main

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rolfenpp/ChronoBit-API/internal/config"
	"github.com/rolfenpp/ChronoBit-API/internal/infra/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configPath)
		if err != nil {
			return err
		}
		setupLogger(conf.Server.LogLevel)

		if conf.Server.Storage != config.StoragePostgres {
			return fmt.Errorf("migrate requires postgres storage, got %q", conf.Server.Storage)
		}

		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			return errors.Wrap(err, "failed to connect database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := database.MigratePostgres(db); err != nil {
			return errors.Wrap(err, "failed to migrate database")
		}

		slog.Info("migration finished", slog.String("module", "main"))
		return nil
	},
}
