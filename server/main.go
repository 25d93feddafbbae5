package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/api"
	"github.com/meikuraledutech/pipeline/catalog"
	"github.com/meikuraledutech/pipeline/log"
	"github.com/meikuraledutech/pipeline/memory"
	"github.com/meikuraledutech/pipeline/postgres"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 3000

func main() {
	cmd := &cli.Command{
		Name:  "pipeline-server",
		Usage: "Serve node schematics, pipelines and devices to the editor",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection URL; pipelines are kept in memory when empty",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "seed",
				Usage:   "Register demo devices and a demo pipeline on startup",
				Sources: cli.EnvVars("SEED"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("server")

	store, closeStore, err := openStore(ctx, command.String("database-url"))
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.CreateSchema(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	registry := catalog.Default(store)
	if command.Bool("seed") {
		if err := seed(ctx, store, registry); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.InfoContext(ctx, "Seeded demo data")
	}

	app := api.New(log.WithModule("api"), store, registry).App()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "Failed to shut down", "error", err)
		}
	}()

	addr := ":" + strconv.Itoa(command.Int("port"))
	logger.InfoContext(ctx, "Starting pipeline API", "addr", addr)
	return app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func openStore(ctx context.Context, dbURL string) (pipeline.Store, func(), error) {
	if dbURL == "" {
		return memory.New(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return postgres.New(pool), pool.Close, nil
}
