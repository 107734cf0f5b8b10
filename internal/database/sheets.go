package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/model"
)

// SheetHandle is a resolved connection to one tab of a spreadsheet.
type SheetHandle struct {
	Service       *sheets.Service
	SpreadsheetID string
	SheetName     string
	// SheetID is the numeric tab id used by batch updates.
	SheetID int64
}

// SheetConnector lazily builds the Sheets client and resolves the queue tab.
//
// The client is constructed at most once per process. A construction failure
// is a configuration problem and is returned on every later call. Tab
// resolution is a network call, so it is retried until it succeeds once and
// then cached for the life of the process.
type SheetConnector struct {
	credentials   []byte
	spreadsheetID string
	sheetName     string
	clientOpts    []option.ClientOption
	log           zerolog.Logger

	clientOnce sync.Once
	service    *sheets.Service
	clientErr  error

	mu     sync.Mutex
	handle *SheetHandle
}

// NewSheetConnector creates a connector from configuration. No network call is made.
// opts are passed to the Sheets client after the service-account credentials;
// when CredentialsJSON is empty they must carry their own authentication.
func NewSheetConnector(cfg *config.Config, log zerolog.Logger, opts ...option.ClientOption) *SheetConnector {
	return &SheetConnector{
		credentials:   cfg.CredentialsJSON,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		clientOpts:    opts,
		log:           log.With().Str("component", "sheets").Logger(),
	}
}

// Handle returns the cached tab handle, connecting on first use.
func (c *SheetConnector) Handle(ctx context.Context) (*SheetHandle, error) {
	c.clientOnce.Do(func() {
		c.service, c.clientErr = c.newService()
	})
	if c.clientErr != nil {
		return nil, c.clientErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		return c.handle, nil
	}

	ss, err := c.service.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: open spreadsheet %s: %w", model.ErrConnection, c.spreadsheetID, err)
	}

	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			c.handle = &SheetHandle{
				Service:       c.service,
				SpreadsheetID: c.spreadsheetID,
				SheetName:     c.sheetName,
				SheetID:       sh.Properties.SheetId,
			}
			c.log.Info().
				Str("spreadsheet_id", c.spreadsheetID).
				Str("sheet", c.sheetName).
				Int64("sheet_id", sh.Properties.SheetId).
				Msg("Google Sheets connected")
			return c.handle, nil
		}
	}

	return nil, fmt.Errorf("%w: tab %q not found in spreadsheet %s", model.ErrConnection, c.sheetName, c.spreadsheetID)
}

func (c *SheetConnector) newService() (*sheets.Service, error) {
	if len(c.credentials) == 0 && len(c.clientOpts) == 0 {
		return nil, fmt.Errorf("%w: service account credentials are empty", model.ErrConfiguration)
	}
	if c.spreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheet id is empty", model.ErrConfiguration)
	}

	// The client outlives any single request, so it is not bound to a request context.
	ctx := context.Background()

	opts := make([]option.ClientOption, 0, len(c.clientOpts)+1)
	if len(c.credentials) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, c.credentials, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("%w: parse service account credentials: %w", model.ErrConfiguration, err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	opts = append(opts, c.clientOpts...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create sheets client: %w", model.ErrConfiguration, err)
	}
	return svc, nil
}
