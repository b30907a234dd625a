package main

import (
	"github.com/pkg/errors"

	"github.com/luna-app/luna/storage/database"
)

var (
	runMigrationsFunc = database.RunMigrations // mockable

	errNoMigrations = errors.New("migrations only apply to the postgres engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoMigrations
	}
	return runMigrationsFunc(cli.db, args[0], args[1:]...)
}
