// Package main contains the entrypoint for the Telegram bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okravets/baraholka/internal/bot"
	"github.com/okravets/baraholka/internal/bot/handlers"
	"github.com/okravets/baraholka/internal/bot/tasks"
	"github.com/okravets/baraholka/internal/classify"
	"github.com/okravets/baraholka/internal/config"
	"github.com/okravets/baraholka/internal/database"
	"github.com/okravets/baraholka/internal/extract"
	"github.com/okravets/baraholka/internal/logger"
	"github.com/okravets/baraholka/internal/pipeline"
	"github.com/okravets/baraholka/internal/storage"
	"github.com/okravets/baraholka/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// object storage, pipeline, bot, scheduler), handles graceful shutdown, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	images, err := storage.NewImageStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("Failed to initialize image storage", "endpoint", cfg.Storage.Endpoint, "error", err)
		return 1
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, tgbot.WithMiddlewares(logger.Middleware(log)))
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	cfg.Telegram.BotInfo = config.BotInfo{ID: me.ID, Username: me.Username}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	source, err := telegram.NewSource(tg, cfg.Telegram.Token, me.ID, store, log)
	if err != nil {
		log.Error("Failed to create message source", "error", err)
		return 1
	}

	extractor, err := extract.New(cfg.Extractor, cfg.Pipeline.ExternalTimeout, source, images, log)
	if err != nil {
		log.Error("Failed to create extractor", "error", err)
		return 1
	}

	classifier := classify.New(cfg.Classifier)
	pipe := pipeline.New(cfg.Pipeline, source, store, classifier, extractor, log)

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Pipeline: pipe,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	tg.RegisterHandlerMatchFunc(matchIngestable, handlers.NewIngestHandler(hDeps))

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, db, store, pipe, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// matchIngestable selects non-command messages and channel posts for the
// ingestion handler. Commands keep falling through to their own handlers.
func matchIngestable(update *models.Update) bool {
	if update.ChannelPost != nil {
		return true
	}
	if update.Message == nil {
		return false
	}
	return !strings.HasPrefix(update.Message.Text, "/")
}
