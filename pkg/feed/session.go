// Package feed defines the navigation session the paginator drives.
//
// A Session represents one logical page over an authenticated feed. Calls
// are strictly sequential: snapshot, open a detail, read it, close it, and
// only then move on. Implementations are not required to be safe for
// concurrent use.
package feed

import (
	"context"
	"time"

	"tagsync/pkg/models"
)

// MediaElement is one image or video frame of a post
type MediaElement struct {
	Src string
	Alt string
}

// DetailView is what the detail page of a post exposes
type DetailView struct {
	// Timestamp is the raw publish timestamp, empty when none is shown.
	Timestamp string
	Media     []MediaElement
	// Permalink is the absolute post URL when the session knows it.
	Permalink string
}

// AltTexts returns the alternative text of every media element, in order
func (d *DetailView) AltTexts() []string {
	alts := make([]string, 0, len(d.Media))
	for _, m := range d.Media {
		alts = append(alts, m.Alt)
	}
	return alts
}

// Session navigates an authenticated feed
type Session interface {
	// SnapshotCandidates returns every candidate currently loaded, in
	// presentation order.
	SnapshotCandidates(ctx context.Context) ([]models.CandidateRef, error)
	OpenDetail(ctx context.Context, ref models.CandidateRef) (*DetailView, error)
	CloseDetail(ctx context.Context) error
	Scroll(ctx context.Context, step int) error
	WaitSettle(ctx context.Context, d time.Duration) error
	// Authenticated reports whether the session still holds its auth state.
	Authenticated(ctx context.Context) (bool, error)
}

// Capability names an optional interstitial the session may be asked to dismiss
type Capability string

const (
	CapabilitySaveLoginInfo Capability = "save_login_info"
	CapabilityNotifications Capability = "notifications"
	CapabilityCookieBanner  Capability = "cookie_banner"
)

// Dismisser is implemented by sessions that can close optional dialogs.
// It reports whether the dialog was present.
type Dismisser interface {
	DismissIfPresent(ctx context.Context, capability Capability) (bool, error)
}
