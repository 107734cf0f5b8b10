package database_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/database"
	"github.com/stemsi/help-queue/internal/database/sheetstest"
	"github.com/stemsi/help-queue/internal/model"
)

func sheetsConfig(id, tab string) *config.Config {
	return &config.Config{
		StoreDriver:   config.StoreDriverSheets,
		SpreadsheetID: id,
		SheetName:     tab,
	}
}

func TestSheetConnectorConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{
			name: "empty credentials",
			cfg:  sheetsConfig("sheet-id", "Queue"),
		},
		{
			name: "malformed credentials",
			cfg: &config.Config{
				CredentialsJSON: []byte("not json"),
				SpreadsheetID:   "sheet-id",
				SheetName:       "Queue",
			},
		},
		{
			name: "empty spreadsheet id",
			cfg: &config.Config{
				CredentialsJSON: []byte(`{"type":"service_account"}`),
				SheetName:       "Queue",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := database.NewSheetConnector(tt.cfg, zerolog.Nop())

			_, err := conn.Handle(context.Background())
			if !errors.Is(err, model.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			// A broken client stays broken.
			_, err = conn.Handle(context.Background())
			if !errors.Is(err, model.ErrConfiguration) {
				t.Fatalf("expected configuration error on retry, got %v", err)
			}
		})
	}
}

func TestSheetConnectorMissingTab(t *testing.T) {
	srv := sheetstest.NewServer("sheet-id", map[string]int64{"Other": 0})
	defer srv.Close()

	conn := database.NewSheetConnector(sheetsConfig("sheet-id", "Queue"), zerolog.Nop(), srv.ClientOptions()...)

	_, err := conn.Handle(context.Background())
	if !errors.Is(err, model.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("missing tab must not be a configuration error: %v", err)
	}
}

func TestSheetConnectorUnknownSpreadsheet(t *testing.T) {
	srv := sheetstest.NewServer("sheet-id", map[string]int64{"Queue": 0})
	defer srv.Close()

	conn := database.NewSheetConnector(sheetsConfig("other-id", "Queue"), zerolog.Nop(), srv.ClientOptions()...)

	if _, err := conn.Handle(context.Background()); !errors.Is(err, model.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestSheetConnectorResolvesAndCachesTab(t *testing.T) {
	srv := sheetstest.NewServer("sheet-id", map[string]int64{"Sheet1": 0, "Queue": 7})
	defer srv.Close()

	conn := database.NewSheetConnector(sheetsConfig("sheet-id", "Queue"), zerolog.Nop(), srv.ClientOptions()...)

	h, err := conn.Handle(context.Background())
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if h.SheetID != 7 || h.SheetName != "Queue" || h.SpreadsheetID != "sheet-id" {
		t.Fatalf("unexpected handle %+v", h)
	}

	again, err := conn.Handle(context.Background())
	if err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if again != h {
		t.Fatal("expected the cached handle to be reused")
	}
	if n := len(srv.Calls()); n != 1 {
		t.Fatalf("expected one metadata request, got %d", n)
	}
}

func TestSheetConnectorRetriesAfterNetworkFailure(t *testing.T) {
	srv := sheetstest.NewServer("sheet-id", map[string]int64{"Queue": 0})
	defer srv.Close()

	conn := database.NewSheetConnector(sheetsConfig("sheet-id", "Queue"), zerolog.Nop(), srv.ClientOptions()...)

	srv.FailWith(http.StatusForbidden)
	if _, err := conn.Handle(context.Background()); !errors.Is(err, model.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}

	srv.FailWith(0)
	if _, err := conn.Handle(context.Background()); err != nil {
		t.Fatalf("expected recovery once access is restored, got %v", err)
	}
}
