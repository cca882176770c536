package dateclass

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tagsync/pkg/clock"
)

func TestClassify(t *testing.T) {
	c := New(clock.Location(9))
	target := "2025-06-01"

	tests := []struct {
		name string
		raw  string
		want Classification
	}{
		{"same day in UTC", "2025-06-01T03:00:00.000Z", Equal},
		{"UTC evening before rolls into target day", "2025-05-31T15:30:00.000Z", Equal},
		{"UTC just before midnight KST", "2025-05-31T14:59:59Z", Older},
		{"late target day KST", "2025-06-01T14:59:59Z", Equal},
		{"next day KST", "2025-06-01T15:00:00Z", Newer},
		{"explicit offset", "2025-06-01T23:00:00+09:00", Equal},
		{"week old", "2025-05-25T10:00:00Z", Older},
		{"future", "2025-06-03T10:00:00Z", Newer},
		{"loose format read as UTC", "2025-05-31 16:00:00", Equal},
		{"epoch seconds", "1748736000", Equal},
		{"empty", "", ParseFailure},
		{"garbage", "yesterday-ish", ParseFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.raw, target))
		})
	}
}

func TestClassifyRejectsMalformedTargetDay(t *testing.T) {
	c := New(nil)
	assert.Equal(t, ParseFailure, c.Classify("2025-06-01T03:00:00Z", "06/01/2025"))
	assert.Equal(t, ParseFailure, c.Classify("2025-06-01T03:00:00Z", ""))
}

func TestDay(t *testing.T) {
	c := New(clock.Location(9))

	day, ok := c.Day("2025-05-31T15:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, "2025-06-01", day)

	_, ok = c.Day("   ")
	assert.False(t, ok)
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "equal", Equal.String())
	assert.Equal(t, "older", Older.String())
	assert.Equal(t, "newer", Newer.String())
	assert.Equal(t, "parse_failure", ParseFailure.String())
}
