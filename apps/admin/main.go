package main

import (
	"context"
	"os"

	"github.com/luna-app/luna/core"
	logsvc "github.com/luna-app/luna/services/logger"
	"github.com/luna-app/luna/storage/database"
	mongodb "github.com/luna-app/luna/storage/database/mongo"
	sqlxrepos "github.com/luna-app/luna/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, "admin", conf)
	dbLogger := logger.With("db")
	ctx := context.Background()

	// set up DB
	var (
		cli   commandLine
		store core.Store
	)
	switch conf.Database.Engine {
	case core.EngineMongo:
		db, err := mongodb.Open(ctx, conf)
		errAndDie(dbLogger, err)
		store = db
		cli.usrRepo = mongodb.NewUserRepository(db)
	case core.EnginePostgres:
		errAndDie(dbLogger, database.CreateIfNotExist(ctx, conf))
		db, err := database.Open(ctx, conf)
		errAndDie(dbLogger, err)
		store = db
		cli.db = db.DB.DB
		cli.usrRepo = sqlxrepos.NewUserRepository(db.DB)
	default:
		logger.Fatal("the admin CLI needs a persistent database engine", map[string]interface{}{"engine": conf.Database.Engine})
	}

	// start CLI
	err := cli.run(os.Args)
	if cerr := store.Close(ctx); cerr != nil {
		dbLogger.Error("closing database", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal("setting up database", err)
	}
}
