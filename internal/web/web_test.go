package web

import (
	"strings"
	"testing"
	"time"

	"github.com/stemsi/help-queue/internal/model"
)

func TestInstructorShowsRequestDate(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 5, 0, 0, time.FixedZone("WIB", 7*60*60))

	var out strings.Builder
	err := Templates().ExecuteTemplate(&out, "instructor.tmpl", map[string]any{
		"Title":  "Instructor",
		"HasAny": true,
		"Requests": []model.HelpRequest{
			{ID: "r1", Name: "Alice", Rating: 3, Timestamp: at, Status: model.StatusPending},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if !strings.Contains(out.String(), "2026-03-01 02:05 UTC") {
		t.Fatalf("expected the UTC date and time in the table, got:\n%s", out.String())
	}
}

func TestInstructorEmptyStates(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"empty sheet", map[string]any{"Title": "Instructor"}, "No help requests yet."},
		{"nothing pending", map[string]any{"Title": "Instructor", "HasAny": true}, "No pending requests."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			if err := Templates().ExecuteTemplate(&out, "instructor.tmpl", tt.data); err != nil {
				t.Fatalf("render: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Fatalf("expected %q in:\n%s", tt.want, out.String())
			}
		})
	}
}
