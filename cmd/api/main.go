package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nahueltrek/api/internal/app"
	"nahueltrek/api/internal/auth"
	"nahueltrek/api/internal/calendar"
	"nahueltrek/api/internal/config"
	"nahueltrek/api/internal/email"
	"nahueltrek/api/internal/export"
	"nahueltrek/api/internal/logger"
	"nahueltrek/api/internal/media"
	"nahueltrek/api/internal/search"
	"nahueltrek/api/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	backends, err := app.OpenBackends(ctx, cfg, log)
	if err != nil {
		log.Fatal("backend setup failed", "error", err)
	}
	defer backends.Close()

	activities := store.NewGateway(backends.Tables.Actividades, store.ActivitySchema)
	places := store.NewGateway(backends.Tables.Lugares, store.PlaceSchema)
	reservations := store.NewReservations(backends.Tables.Reservas)

	googleOpts := app.GoogleOptions(cfg)

	mirror, err := calendar.New(backends.Google.Calendar(), calendar.Config{
		CalendarID: cfg.CalendarID,
		Timezone:   cfg.CalendarTimezone,
		SiteURL:    cfg.PublicBaseURL,
		Options:    googleOpts,
	})
	if err != nil {
		log.Fatal("calendar setup failed", "error", err)
	}

	var images media.ImageStore
	switch cfg.ImageStore {
	case "s3":
		minioStore, err := media.NewMinioStore(media.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			log.Fatal("s3 setup failed", "error", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			log.Warn("s3 bucket check failed", "bucket", cfg.S3Bucket, "error", err)
		}
		images = minioStore
		log.Info("using s3 image store", "bucket", cfg.S3Bucket)
	default:
		images = media.NewDriveStore(backends.Google.Drive(), cfg.DriveFolderID, googleOpts...)
		log.Info("using google drive image store")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewLocal(activities, places), log)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Info("smtp not configured, booking notifications disabled")
	}

	service := app.New(app.Deps{
		Activities:    activities,
		Places:        places,
		Reservations:  reservations,
		Images:        images,
		ImageMaxBytes: cfg.ImageMaxBytes,
		Calendar:      mirror,
		Mailer:        mailer,
		BookingEmail:  cfg.BookingEmail,
		Search:        searchService,
		Export:        export.NewService(reservations, activities, mirror.Location()),
		Admin:         auth.NewAdmin(cfg.AdminPasswordHash, cfg.AdminTokenSecret, cfg.AdminTokenTTL),
		Google:        backends.Google,
		Checks:        backends.Checks,
		Logger:        log,
	})
	service.Bootstrap(ctx)

	redirect := ""
	if cfg.PublicBaseURL != "" {
		redirect = strings.TrimRight(cfg.PublicBaseURL, "/") + "/admin"
	}
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, redirect, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Nahuel Trek API listening", "addr", cfg.Addr, "storage", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
