package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/config"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/database"
	"github.com/Mohamed-Adel17/CareerRouteBack/internal/routes"
)

func main() {
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DurationFieldUnit = time.Millisecond

	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDevelopment() {
		zlog = zlog.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	if cfg.DBUrl == "" {
		zlog.Fatal().Msg("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.CloseDB()

	app := fiber.New()

	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	stopWorkers := routes.RegisterRoutes(app, cfg, database.DB, zlog)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zlog.Info().Msg("shutting down")
		stopWorkers()
		_ = app.Shutdown()
	}()

	zlog.Info().Str("port", cfg.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal().Err(err).Msg("server failed to start")
	}
}
