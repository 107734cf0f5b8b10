// Package session keeps per-session UI state out of the request handlers.
package session

import (
	"context"

	"github.com/stemsi/help-queue/internal/model"
)

// Store persists SessionState by session id.
type Store interface {
	// Get returns model.ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*model.SessionState, error)
	Save(ctx context.Context, id string, state *model.SessionState) error
	Delete(ctx context.Context, id string) error
}

func clone(s *model.SessionState) *model.SessionState {
	out := *s
	if s.Level != nil {
		lvl := *s.Level
		out.Level = &lvl
	}
	return &out
}
