package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/help-queue/internal/model"
	"github.com/stemsi/help-queue/internal/repository"
)

// legacyTimestampLayout matches rows written without a zone suffix; they are read as UTC.
const legacyTimestampLayout = "2006-01-02T15:04:05.999999999"

// QueueService implements the help queue on top of the sheet repository.
type QueueService struct {
	repo   *repository.HelpRequestRepository
	roster []string
	now    func() time.Time
	log    zerolog.Logger
}

// NewQueueService creates a new QueueService. An empty roster accepts any non-empty name.
func NewQueueService(repo *repository.HelpRequestRepository, roster []string, log zerolog.Logger) *QueueService {
	return &QueueService{
		repo:   repo,
		roster: roster,
		now:    time.Now,
		log:    log.With().Str("component", "queue_service").Logger(),
	}
}

// WithClock replaces the time source used for new request timestamps.
func (s *QueueService) WithClock(now func() time.Time) *QueueService {
	s.now = now
	return s
}

// SubmitRequest validates and appends a new pending help request.
func (s *QueueService) SubmitRequest(ctx context.Context, name string, rating int) (*model.HelpRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("name", "name is required")
	}
	if len(s.roster) > 0 && !slices.Contains(s.roster, name) {
		return nil, model.NewValidationError("name", "name is not on the roster")
	}
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, model.NewValidationError("rating", fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	}

	req := &model.HelpRequest{
		ID:        uuid.New().String(),
		Name:      name,
		Rating:    rating,
		Timestamp: s.now().UTC(),
		Status:    model.StatusPending,
	}

	if err := s.repo.EnsureHeaders(ctx); err != nil {
		return nil, fmt.Errorf("ensure headers: %w", err)
	}
	row := []any{req.ID, req.Name, req.Rating, req.Timestamp.Format(model.TimestampLayout), string(req.Status)}
	if err := s.repo.AppendRow(ctx, row); err != nil {
		return nil, fmt.Errorf("append help request: %w", err)
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("name", req.Name).
		Int("rating", req.Rating).
		Msg("Help request submitted")
	return req, nil
}

// ListAll returns every parseable row in store order.
func (s *QueueService) ListAll(ctx context.Context) ([]model.HelpRequest, error) {
	if err := s.repo.EnsureHeaders(ctx); err != nil {
		return nil, fmt.Errorf("ensure headers: %w", err)
	}
	rows, err := s.repo.ListRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}

	out := make([]model.HelpRequest, 0, len(rows))
	for i, rec := range rows {
		req, err := parseRow(rec)
		if err != nil {
			s.log.Warn().Err(err).Int("row", repository.DataRowIndex(i)).Msg("Skipping malformed row")
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// ListPending returns pending requests ordered by rating, then timestamp.
// Ties on both keep store order.
func (s *QueueService) ListPending(ctx context.Context) ([]model.HelpRequest, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return SortPending(all), nil
}

// SortPending filters requests to pending ones and sorts them by priority.
func SortPending(reqs []model.HelpRequest) []model.HelpRequest {
	pending := make([]model.HelpRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.Status == model.StatusPending {
			pending = append(pending, r)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Rating != pending[j].Rating {
			return pending[i].Rating < pending[j].Rating
		}
		return pending[i].Timestamp.Before(pending[j].Timestamp)
	})
	return pending
}

// MarkHelped sets the status of the first row carrying id to helped.
//
// The scan and the write are separate round trips and the store offers no
// conditional update. Before writing, the id cell of the targeted row is read
// again; if it no longer matches (for example a reset ran in between),
// model.ErrRowChanged is returned. A change after that re-read still goes
// undetected and the write lands on whatever row now sits there.
func (s *QueueService) MarkHelped(ctx context.Context, id string) error {
	rows, err := s.repo.ListRows(ctx)
	if err != nil {
		return fmt.Errorf("list rows: %w", err)
	}

	for i, rec := range rows {
		if rec[model.ColumnID] != id {
			continue
		}
		if model.Status(rec[model.ColumnStatus]) == model.StatusHelped {
			return nil
		}

		rowIndex := repository.DataRowIndex(i)
		current, err := s.repo.ReadCell(ctx, rowIndex, model.ColumnID)
		if err != nil {
			return fmt.Errorf("re-read row %d: %w", rowIndex, err)
		}
		if current != id {
			s.log.Warn().Str("request_id", id).Int("row", rowIndex).Msg("Row changed between scan and write")
			return model.ErrRowChanged
		}

		if err := s.repo.UpdateCell(ctx, rowIndex, model.ColumnStatus, string(model.StatusHelped)); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		s.log.Info().Str("request_id", id).Int("row", rowIndex).Msg("Help request marked helped")
		return nil
	}

	return model.ErrNotFound
}

// ResetAll deletes every help request. It cannot be undone.
func (s *QueueService) ResetAll(ctx context.Context) error {
	if err := s.repo.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := s.repo.EnsureHeaders(ctx); err != nil {
		return fmt.Errorf("ensure headers: %w", err)
	}
	s.log.Warn().Msg("Help queue reset")
	return nil
}

// EnsureHeaders repairs the header row.
func (s *QueueService) EnsureHeaders(ctx context.Context) error {
	return s.repo.EnsureHeaders(ctx)
}

// Roster returns the configured student names.
func (s *QueueService) Roster() []string {
	return s.roster
}

func parseRow(rec map[string]string) (model.HelpRequest, error) {
	id := rec[model.ColumnID]
	if id == "" {
		return model.HelpRequest{}, fmt.Errorf("missing id")
	}

	rating, err := strconv.Atoi(strings.TrimSpace(rec[model.ColumnRating]))
	if err != nil {
		return model.HelpRequest{}, fmt.Errorf("row %s: rating %q: %w", id, rec[model.ColumnRating], err)
	}

	ts, err := parseTimestamp(rec[model.ColumnTimestamp])
	if err != nil {
		return model.HelpRequest{}, fmt.Errorf("row %s: %w", id, err)
	}

	return model.HelpRequest{
		ID:        id,
		Name:      rec[model.ColumnName],
		Rating:    rating,
		Timestamp: ts,
		Status:    model.Status(strings.ToLower(strings.TrimSpace(rec[model.ColumnStatus]))),
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(model.TimestampLayout, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.ParseInLocation(legacyTimestampLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", raw, err)
	}
	return ts, nil
}
