package main

import (
	"flag"
	"os"

	"github.com/md-rashed-zaman/clinicflow/libs/config"
	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/runtime"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/migrations"
)

func main() {
	force := flag.Int("force", -1, "mark the given migration version clean and exit")
	flag.Parse()

	_ = config.LoadDotEnv()
	logger := runtime.NewLogger("scheduling-migrate")

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("missing configuration", "err", err)
		os.Exit(2)
	}
	if err := db.Migrate(dbURL, migrations.FS, *force); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "force", *force)
}
