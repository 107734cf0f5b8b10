package websocket

import "github.com/stemsi/help-queue/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionRefresh Action = "refresh"
	ActionHelped  Action = "helped"
	ActionReset   Action = "reset"
	ActionPing    Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// HelpedRequest marks one request as helped.
type HelpedRequest struct {
	Action Action `json:"action"`
	ID     string `json:"id"`
}

// ResetRequest clears the queue. Confirm must equal "RESET".
type ResetRequest struct {
	Action  Action `json:"action"`
	Confirm string `json:"confirm"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventQueue Event = "queue"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// QueueResponse carries the pending requests in queue order.
type QueueResponse struct {
	Event    Event               `json:"event"`
	Requests []model.HelpRequest `json:"requests"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
