package handlers

import (
	"log/slog"

	"github.com/okravets/baraholka/internal/config"
	"github.com/okravets/baraholka/internal/database"
	"github.com/okravets/baraholka/internal/pipeline"
)

// HandlerDeps provides dependencies for Telegram command and message handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Pipeline *pipeline.Pipeline
}
