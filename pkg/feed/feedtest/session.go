// Package feedtest provides a scripted feed.Session for tests.
package feedtest

import (
	"context"
	"fmt"
	"time"

	errs "tagsync/pkg/errors"
	"tagsync/pkg/feed"
	"tagsync/pkg/models"
)

// Post is one scripted feed item
type Post struct {
	Href      string
	Timestamp string
	Media     []feed.MediaElement
	// FailOpen makes OpenDetail return a detail_load error for this post.
	FailOpen bool
}

// Session replays a fixed feed. By default every scroll reveals PageSize more
// posts; when Snapshots is set, scroll n returns Snapshots[n] instead (the
// last entry repeats).
type Session struct {
	Posts     []Post
	PageSize  int
	Snapshots [][]string

	// ExpireAfterSnapshots makes Authenticated report false once that many
	// snapshots have been taken. Zero never expires.
	ExpireAfterSnapshots int
	// Present lists the dismissable dialogs shown at start.
	Present map[feed.Capability]bool

	Opened        []string
	Closed        int
	Scrolls       int
	ScrollSteps   []int
	Waits         []time.Duration
	SnapshotCalls int
	Dismissed     []feed.Capability

	detailOpen bool
}

// New creates a session revealing pageSize posts per scroll
func New(pageSize int, posts ...Post) *Session {
	return &Session{Posts: posts, PageSize: pageSize}
}

func (s *Session) byHref(href string) (Post, bool) {
	for _, p := range s.Posts {
		if p.Href == href {
			return p, true
		}
	}
	return Post{}, false
}

func (s *Session) SnapshotCandidates(ctx context.Context) ([]models.CandidateRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.SnapshotCalls++

	var hrefs []string
	if s.Snapshots != nil {
		i := s.Scrolls
		if i >= len(s.Snapshots) {
			i = len(s.Snapshots) - 1
		}
		if i >= 0 {
			hrefs = s.Snapshots[i]
		}
	} else {
		visible := s.PageSize * (s.Scrolls + 1)
		if s.PageSize <= 0 || visible > len(s.Posts) {
			visible = len(s.Posts)
		}
		for _, p := range s.Posts[:visible] {
			hrefs = append(hrefs, p.Href)
		}
	}

	refs := make([]models.CandidateRef, 0, len(hrefs))
	for _, h := range hrefs {
		refs = append(refs, models.CandidateRef{Identifier: h, SourceURL: "https://feed.test" + h})
	}
	return refs, nil
}

func (s *Session) OpenDetail(ctx context.Context, ref models.CandidateRef) (*feed.DetailView, error) {
	if s.detailOpen {
		return nil, fmt.Errorf("detail already open")
	}
	s.Opened = append(s.Opened, ref.Identifier)

	p, ok := s.byHref(ref.Identifier)
	if !ok {
		// Identifiers arrive normalized; match the scripted href prefix.
		for _, cand := range s.Posts {
			if len(cand.Href) >= len(ref.Identifier) && cand.Href[:len(ref.Identifier)] == ref.Identifier {
				p, ok = cand, true
				break
			}
		}
	}
	if !ok {
		return nil, errs.New(errs.ErrorTypeDetailLoad, "no such post "+ref.Identifier, nil)
	}
	if p.FailOpen {
		return nil, errs.New(errs.ErrorTypeDetailLoad, "article did not render", context.DeadlineExceeded)
	}

	s.detailOpen = true
	return &feed.DetailView{
		Timestamp: p.Timestamp,
		Media:     p.Media,
		Permalink: ref.SourceURL,
	}, nil
}

func (s *Session) CloseDetail(ctx context.Context) error {
	s.detailOpen = false
	s.Closed++
	return nil
}

func (s *Session) Scroll(ctx context.Context, step int) error {
	if s.detailOpen {
		return fmt.Errorf("scroll while detail open")
	}
	s.Scrolls++
	s.ScrollSteps = append(s.ScrollSteps, step)
	return nil
}

func (s *Session) WaitSettle(ctx context.Context, d time.Duration) error {
	s.Waits = append(s.Waits, d)
	return ctx.Err()
}

func (s *Session) Authenticated(ctx context.Context) (bool, error) {
	if s.ExpireAfterSnapshots > 0 && s.SnapshotCalls >= s.ExpireAfterSnapshots {
		return false, nil
	}
	return true, nil
}

func (s *Session) DismissIfPresent(ctx context.Context, capability feed.Capability) (bool, error) {
	if !s.Present[capability] {
		return false, nil
	}
	delete(s.Present, capability)
	s.Dismissed = append(s.Dismissed, capability)
	return true, nil
}

// Image is a shorthand media element
func Image(src, alt string) feed.MediaElement {
	return feed.MediaElement{Src: src, Alt: alt}
}
