package models

import (
	"strings"
	"time"
)

// MentionSeparator joins mentions when they are flattened into a single column
const MentionSeparator = ","

// CandidateRef is a raw reference to a feed item before it is inspected
type CandidateRef struct {
	Identifier string `json:"identifier"`
	SourceURL  string `json:"source_url"`
}

// PostRecord is a post published on the target day that tags the brand
type PostRecord struct {
	PostID       string   `json:"post_id"`
	AuthorID     string   `json:"author_id"`
	BrandID      string   `json:"brand_id"`
	BrandName    string   `json:"brand_name"`
	PostURL      string   `json:"post_url"`
	MediaURL     string   `json:"media_url"`
	PublishDate  string   `json:"publish_date"`
	Mentions     []string `json:"mentions"`
	MentionCount int      `json:"mention_count"`
}

// MentionsString returns the mentions in storage form
func (r PostRecord) MentionsString() string {
	return strings.Join(r.Mentions, MentionSeparator)
}

// ParseMentions is the inverse of MentionsString
func ParseMentions(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, MentionSeparator)
}

// PersistedPostRow is a PostRecord as it lives in the record store
type PersistedPostRow struct {
	PostRecord
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Active      bool      `json:"active"`
}

// RunParams identifies what a single crawl run collects
type RunParams struct {
	BrandID   string `json:"brand_id"`
	BrandName string `json:"brand_name"`
	// TargetDay is a YYYY-MM-DD date in the operating timezone.
	TargetDay string `json:"target_day"`
}
