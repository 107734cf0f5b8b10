package repository

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/database"
	"github.com/stemsi/help-queue/internal/model"
)

// NewTable returns the Table backend selected by STORE_DRIVER.
// The Sheets client is built lazily on first use.
func NewTable(cfg *config.Config, log zerolog.Logger) (Table, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSheets:
		conn := database.NewSheetConnector(cfg, log)
		return NewSheetTable(conn, len(model.Header)), nil
	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory store; requests are lost on restart")
		return NewMemoryTable(), nil
	default:
		return nil, fmt.Errorf("%w: unknown STORE_DRIVER %q", model.ErrConfiguration, cfg.StoreDriver)
	}
}
