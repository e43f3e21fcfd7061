package domain

import "time"

// RoundStatus represents the lifecycle state of a competition round.
type RoundStatus string

const (
	RoundStatusUpcoming  RoundStatus = "Upcoming"
	RoundStatusActive    RoundStatus = "Active"
	RoundStatusCompleted RoundStatus = "Completed"
)

// Round is one week of the competition. Rounds are unique per
// (round_number, year) and at most one is expected to be Active at a time.
type Round struct {
	ID          string      `json:"id"`
	RoundNumber int         `json:"round_number"`
	Year        int         `json:"year"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	Status      RoundStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// DueForActivation reports whether an Upcoming round's window has opened.
func (r Round) DueForActivation(now time.Time) bool {
	return r.Status == RoundStatusUpcoming && !now.Before(r.StartTime)
}

// DueForCompletion reports whether an Active round's window has closed.
func (r Round) DueForCompletion(now time.Time) bool {
	return r.Status == RoundStatusActive && now.After(r.EndTime)
}
