// Package dedup keeps the per-run set of feed candidates that have already
// been admitted for inspection.
package dedup

import (
	"strings"
)

// DefaultReservedSegments are path segments that mark promoted content
var DefaultReservedSegments = []string{"c"}

// Tracker admits each normalized identifier at most once per run.
// The set only grows; it is discarded with the run.
type Tracker struct {
	reserved      map[string]struct{}
	seen          map[string]struct{}
	rejected      map[string]struct{}
	roundAdmitted int
}

// NewTracker creates a tracker rejecting the given reserved segments.
// With no segments, DefaultReservedSegments apply.
func NewTracker(reservedSegments ...string) *Tracker {
	if len(reservedSegments) == 0 {
		reservedSegments = DefaultReservedSegments
	}
	reserved := make(map[string]struct{}, len(reservedSegments))
	for _, seg := range reservedSegments {
		seg = strings.Trim(seg, "/")
		if seg != "" {
			reserved[seg] = struct{}{}
		}
	}
	return &Tracker{
		reserved: reserved,
		seen:     make(map[string]struct{}),
		rejected: make(map[string]struct{}),
	}
}

// Normalize strips the query string and fragment from raw. It returns false
// when the path contains a reserved segment or is empty.
func (t *Tracker) Normalize(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", false
	}
	for _, seg := range strings.Split(id, "/") {
		if _, ok := t.reserved[seg]; ok {
			return "", false
		}
	}
	return id, true
}

// Admit records identifier and reports whether it was new in this run.
// Rejected identifiers are never recorded.
func (t *Tracker) Admit(identifier string) bool {
	id, ok := t.Normalize(identifier)
	if !ok {
		return false
	}
	if _, dup := t.seen[id]; dup {
		return false
	}
	t.seen[id] = struct{}{}
	t.roundAdmitted++
	return true
}

// Reject remembers an identifier that Normalize refused and reports whether
// it is the first refusal of that identifier in this run. Query strings and
// fragments are ignored, so a promoted post seen on every snapshot counts once.
func (t *Tracker) Reject(raw string) bool {
	id := strings.TrimSpace(raw)
	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	if _, dup := t.rejected[id]; dup {
		return false
	}
	t.rejected[id] = struct{}{}
	return true
}

// Seen reports whether identifier was already admitted
func (t *Tracker) Seen(identifier string) bool {
	id, ok := t.Normalize(identifier)
	if !ok {
		return false
	}
	_, dup := t.seen[id]
	return dup
}

// StartRound resets the per-round admission counter
func (t *Tracker) StartRound() {
	t.roundAdmitted = 0
}

// EndRound returns how many identifiers were admitted since StartRound.
// Zero means the round was stagnant.
func (t *Tracker) EndRound() int {
	n := t.roundAdmitted
	t.roundAdmitted = 0
	return n
}

// Len is the number of admitted identifiers
func (t *Tracker) Len() int {
	return len(t.seen)
}
