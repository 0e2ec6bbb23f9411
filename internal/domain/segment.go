package domain

import "time"

// Segment is an audience grouping keyed by the embedding site's hostname.
// A post restricted to segment IDs is only visible to domains that match
// one of those segments.
type Segment struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"team_id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
