package model

// Page names the screen a UI session is currently on.
type Page string

const (
	PageLogin      Page = "login"
	PageLevel      Page = "level"
	PageStudent    Page = "student"
	PageInstructor Page = "instructor"
)

// SessionState is the per-session UI state. It is never shared across sessions.
type SessionState struct {
	User  string `json:"user,omitempty"`
	Level *int   `json:"level,omitempty"`
	Page  Page   `json:"page"`
}

// NewSessionState returns the state of a session nobody has logged into yet.
func NewSessionState() *SessionState {
	return &SessionState{Page: PageLogin}
}

// LoggedIn reports whether a roster name has been selected.
func (s *SessionState) LoggedIn() bool {
	return s.User != ""
}

// LevelOr returns the saved level or fallback when none was chosen.
func (s *SessionState) LevelOr(fallback int) int {
	if s.Level == nil {
		return fallback
	}
	return *s.Level
}

// LoginRequest selects a roster name.
type LoginRequest struct {
	Name string `json:"name" form:"name" binding:"required"`
}

// LevelRequest records the self-reported level.
type LevelRequest struct {
	Level int `json:"level" form:"level" binding:"required,min=1,max=10"`
}

// NavigateRequest switches between the student and instructor screens.
type NavigateRequest struct {
	Page Page `json:"page" form:"page" binding:"required,oneof=student instructor"`
}
