// Package segment decides which posts are visible to a given embedding domain.
package segment

import (
	"strings"

	"github.com/relnotes/widget-tracker/internal/domain"
)

// wwwPrefix is the hostname prefix treated as equivalent to the bare domain.
const wwwPrefix = "www."

// Visible filters posts by the audience segment matching the requesting host.
//
// With no segments configured every post is visible. Otherwise the first
// segment whose domain matches host (under www-equivalence) scopes the result:
// posts with no segment restriction plus posts that list the matched segment.
// When no segment matches — including an empty host — only unrestricted posts
// are returned, so segment-scoped content stays hidden from unknown domains.
func Visible(posts []domain.Post, segments []domain.Segment, host string) []domain.Post {
	if len(segments) == 0 {
		return posts
	}

	matched, ok := Match(segments, host)

	visible := make([]domain.Post, 0, len(posts))
	for _, post := range posts {
		if !post.Restricted() {
			visible = append(visible, post)
			continue
		}
		if ok && includes(post.SegmentIDs, matched.ID) {
			visible = append(visible, post)
		}
	}
	return visible
}

// Match finds the first segment whose domain matches host. Multiple segments
// matching the same host is a configuration ambiguity; iteration order decides.
func Match(segments []domain.Segment, host string) (domain.Segment, bool) {
	if host == "" {
		return domain.Segment{}, false
	}
	for _, seg := range segments {
		if DomainsEqual(seg.Domain, host) {
			return seg, true
		}
	}
	return domain.Segment{}, false
}

// DomainsEqual reports whether two hostnames match under www-equivalence:
// exact match, or one side equals the other prefixed with "www.".
// Comparison is case-sensitive; callers must pass bare hostnames.
func DomainsEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b ||
		strings.TrimPrefix(a, wwwPrefix) == b ||
		a == strings.TrimPrefix(b, wwwPrefix)
}

func includes(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
