package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/novabrands/storefront-api/internal/config"
	"github.com/novabrands/storefront-api/internal/database"
	"github.com/novabrands/storefront-api/internal/handler"
	"github.com/novabrands/storefront-api/internal/queue"
	"github.com/novabrands/storefront-api/internal/repository"
	"github.com/novabrands/storefront-api/internal/router"
	queue_publisher "github.com/novabrands/storefront-api/internal/service"
	"github.com/novabrands/storefront-api/internal/session"
	"github.com/novabrands/storefront-api/internal/upload"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()
	setupLogging(cfg.Env)

	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("storefront api starting")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := database.EnsureBootstrapAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost); err != nil {
		log.Fatal().Err(err).Msg("bootstrap admin failed")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		// Sessions live in redis; unlike rate limiting there is no
		// degraded mode without it.
		log.Fatal().Msg("redis connection failed; sessions require redis")
	}
	sessions := session.NewStore(rdb, cfg.SessionTTL)

	images := upload.NewStore(cfg.UploadRoot)

	// Drain activity events into activity_log for the lifetime of the
	// process. The consumer reconnects on its own when the broker drops.
	go queue.StartActivityConsumer(db)

	api := handler.NewAPI(cfg,
		repository.NewUserRepo(db),
		repository.NewProductRepo(db),
		sessions,
		images,
		queue_publisher.PublishActivity,
	)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, api, sessions, rdb, config.LoadRateLimitConfig(), images.Dir())

	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// setupLogging configures the global zerolog logger: human-readable
// console output in dev, JSON elsewhere.
func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
