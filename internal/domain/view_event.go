package domain

import "time"

// ViewEvent is an append-only audit record written alongside each view-count
// increment. One event row covers the coalesced increment for one post in one
// flush cycle.
type ViewEvent struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id"`
	IncrementBy int       `json:"increment_by"`
	RecordedAt  time.Time `json:"recorded_at"`
}
