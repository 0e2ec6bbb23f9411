package domain

import "time"

// Post status values.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Translation holds the localized title and body for one language code.
type Translation struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Post is a single changelog entry served to the embeddable widget.
// Posts are authored elsewhere; the widget API reads them and increments views.
type Post struct {
	ID           string                 `json:"id"`
	TeamID       string                 `json:"team_id"`
	Title        string                 `json:"title"`
	Body         string                 `json:"body"`
	Category     string                 `json:"category,omitempty"`
	Status       string                 `json:"status"`
	Views        int64                  `json:"views"`
	SegmentIDs   []string               `json:"segment_ids,omitempty"`
	MediaURLs    []string               `json:"media_urls,omitempty"`
	Translations map[string]Translation `json:"translations,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Restricted reports whether the post is scoped to specific segments.
func (p *Post) Restricted() bool {
	return len(p.SegmentIDs) > 0
}
