package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stemsi/help-queue/internal/config"
	"github.com/stemsi/help-queue/internal/model"
	"github.com/stemsi/help-queue/internal/session"
)

// SessionClaims identifies a UI session. The JWT ID is the session id.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Session is the typed per-request session context handed to handlers.
type Session struct {
	ID    string
	Token string
	State *model.SessionState
}

// SessionService issues session tokens and drives the login → level → student flow.
// Tokens only identify a session; choosing a name is not authentication.
type SessionService struct {
	store  session.Store
	roster []string
	secret []byte
	ttl    time.Duration
}

// NewSessionService creates a new SessionService.
func NewSessionService(cfg *config.Config, store session.Store) *SessionService {
	return &SessionService{
		store:  store,
		roster: cfg.Roster,
		secret: []byte(cfg.SessionSecret),
		ttl:    cfg.SessionTTL,
	}
}

// Roster returns the names offered on the login screen.
func (s *SessionService) Roster() []string {
	return s.roster
}

// TTL returns how long a session token stays valid.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Start creates a fresh session on the login page and returns its signed token.
func (s *SessionService) Start(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	now := time.Now()

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	state := model.NewSessionState()
	if err := s.store.Save(ctx, id, state); err != nil {
		return nil, err
	}
	return &Session{ID: id, Token: signed, State: state}, nil
}

// Resolve validates a token and loads its session state.
// Any invalid, expired or unknown token yields model.ErrSessionNotFound.
func (s *SessionService) Resolve(ctx context.Context, tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSessionNotFound, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, model.ErrSessionNotFound
	}

	state, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	return &Session{ID: claims.ID, Token: tokenStr, State: state}, nil
}

// Save persists the session state.
func (s *SessionService) Save(ctx context.Context, sess *Session) error {
	return s.store.Save(ctx, sess.ID, sess.State)
}

// End discards the session. The user has to log in again.
func (s *SessionService) End(ctx context.Context, sess *Session) error {
	return s.store.Delete(ctx, sess.ID)
}

// Login records the selected roster name and moves on to level selection.
// On error the state is left unchanged.
func (s *SessionService) Login(state *model.SessionState, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || !slices.Contains(s.roster, name) {
		return model.NewValidationError("name", "Please select your name.")
	}
	state.User = name
	state.Page = model.PageLevel
	return nil
}

// SaveLevel records the self-reported level and moves on to the student view.
func (s *SessionService) SaveLevel(state *model.SessionState, level int) error {
	if !state.LoggedIn() {
		return model.NewValidationError("name", "Please select your name.")
	}
	if level < model.MinRating || level > model.MaxRating {
		return model.NewValidationError("level", fmt.Sprintf("level must be between %d and %d", model.MinRating, model.MaxRating))
	}
	state.Level = &level
	state.Page = model.PageStudent
	return nil
}

// ForcedPage reports the page a session must stay on until its step is completed.
func ForcedPage(state *model.SessionState) (model.Page, bool) {
	switch {
	case !state.LoggedIn():
		return model.PageLogin, true
	case state.Page == model.PageLevel || state.Level == nil:
		return model.PageLevel, true
	default:
		return "", false
	}
}

// Navigate switches between the student and instructor views.
func (s *SessionService) Navigate(state *model.SessionState, page model.Page) error {
	if forced, ok := ForcedPage(state); ok {
		state.Page = forced
		return model.NewValidationError("page", fmt.Sprintf("complete the %s step first", forced))
	}
	switch page {
	case model.PageStudent, model.PageInstructor:
		state.Page = page
		return nil
	default:
		return model.NewValidationError("page", "unknown page")
	}
}

// IsSessionError reports whether err means the caller has no usable session.
func IsSessionError(err error) bool {
	return errors.Is(err, model.ErrSessionNotFound)
}
