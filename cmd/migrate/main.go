// Command migrate copies the legacy actividades.json and lugares.json files
// into the configured row store, replacing what the sheets hold.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"nahueltrek/api/internal/app"
	"nahueltrek/api/internal/config"
	"nahueltrek/api/internal/logger"
	"nahueltrek/api/internal/migration"
)

func main() {
	dir := flag.String("dir", "./data/legacy", "directory holding actividades.json and lugares.json")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backends, err := app.OpenBackends(ctx, cfg, log)
	if err != nil {
		log.Fatal("backend setup failed", "error", err)
	}
	defer backends.Close()

	if cfg.StorageBackend == "sheets" {
		backends.Google.InitializeAll(ctx)
		sheets := backends.Google.Sheets()
		if !sheets.Ready() {
			// borrows a stored drive credential when sharing is enabled
			res, err := sheets.Authenticate(ctx)
			if err != nil || !res.Authenticated {
				log.Error("google sheets is not authorized; authorize it from the admin panel first", "error", err)
				os.Exit(1)
			}
		}
	}

	report, err := migration.New(backends.Tables.Actividades, backends.Tables.Lugares, log).Run(ctx, *dir)
	log.Info("migration finished",
		"actividades", report.Actividades,
		"lugares", report.Lugares,
		"skipped", report.Skipped,
	)
	if err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
}
