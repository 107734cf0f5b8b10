package model

import "time"

// Status is the lifecycle state of a help request.
type Status string

const (
	StatusPending Status = "pending"
	StatusHelped  Status = "helped"
)

// Rating bounds, inclusive.
const (
	MinRating     = 1
	MaxRating     = 10
	DefaultRating = 5
)

// Sheet column names, in storage order.
const (
	ColumnID        = "id"
	ColumnName      = "name"
	ColumnRating    = "rating"
	ColumnTimestamp = "timestamp"
	ColumnStatus    = "status"
)

// Header is the fixed first row of the queue tab.
var Header = []string{ColumnID, ColumnName, ColumnRating, ColumnTimestamp, ColumnStatus}

// TimestampLayout is how creation times are written to the sheet.
const TimestampLayout = time.RFC3339Nano

// HelpRequest is one row of the queue.
type HelpRequest struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// SubmitHelpRequest is the payload for creating a help request.
// An empty Name falls back to the caller's logged-in session user.
type SubmitHelpRequest struct {
	Name   string `json:"name" form:"name" binding:"omitempty,max=100"`
	Rating int    `json:"rating" form:"rating" binding:"required,min=1,max=10"`
}

// ResetQueueRequest must carry the literal confirmation word.
type ResetQueueRequest struct {
	Confirm string `json:"confirm" form:"confirm" binding:"required,eq=RESET"`
}

// ResetConfirmWord is the value ResetQueueRequest.Confirm must hold.
const ResetConfirmWord = "RESET"

// RatingForm is the student screen's submission form; the name comes from the session.
type RatingForm struct {
	Rating int `form:"rating" binding:"required,min=1,max=10"`
}
