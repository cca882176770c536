package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagsync/pkg/logger"
	"tagsync/pkg/models"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		brand   string
		day     string
		want    string
		wantErr bool
	}{
		{brand: "Acme", day: "2025-03-01", want: "Acme_20250301.csv"},
		{brand: "Acme Korea", day: "2025-12-31", want: "Acme Korea_20251231.csv"},
		{brand: "a/b", day: "2025-03-01", want: "a_b_20250301.csv"},
		{brand: "아크미", day: "2025-03-01", want: "아크미_20250301.csv"},
		{brand: "Acme", day: "03/01/2025", wantErr: true},
		{brand: " .. ", day: "2025-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.brand+"_"+tt.day, func(t *testing.T) {
			got, err := FileName(tt.brand, tt.day)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	w, err := NewWriter(dir, logger.NewNopLogger())
	require.NoError(t, err)

	records := []models.PostRecord{
		{
			PostID:       "ABC",
			AuthorID:     "alice",
			BrandID:      "acme",
			BrandName:    "Acme",
			PostURL:      "https://www.instagram.com/p/ABC/",
			MediaURL:     "https://cdn.test/ABC.jpg",
			PublishDate:  "2025-03-01",
			Mentions:     []string{"@acme", "@bob"},
			MentionCount: 2,
		},
		{PostID: "DEF", AuthorID: "carol", BrandID: "acme", BrandName: "Acme", PublishDate: "2025-03-01"},
	}

	path, err := w.Write("Acme", "2025-03-01", records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Acme_20250301.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(content), bom))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(content), bom))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"ABC", "alice", "Acme", "acme", "https://www.instagram.com/p/ABC/", "https://cdn.test/ABC.jpg", "2025-03-01", "@acme,@bob", "2"}, rows[1])
	assert.Equal(t, "0", rows[2][8])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteReplacesSameDay(t *testing.T) {
	w, err := NewWriter(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	_, err = w.Write("Acme", "2025-03-01", []models.PostRecord{{PostID: "A"}, {PostID: "B"}})
	require.NoError(t, err)
	path, err := w.Write("Acme", "2025-03-01", []models.PostRecord{{PostID: "C"}})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "\n"))
	assert.Contains(t, string(content), "C,")
	assert.NotContains(t, string(content), "A,")
}

func TestWriteInvalidDayLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = w.Write("Acme", "yesterday", nil)
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
