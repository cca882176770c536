package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"tagsync/pkg/logger"
	"tagsync/pkg/models"
)

// bom marks the file as UTF-8 for spreadsheet tools
const bom = "\uFEFF"

// Header is the column order of every batch file
var Header = []string{
	"post_id",
	"author_id",
	"brand_name",
	"brand_id",
	"post_url",
	"media_url",
	"publish_date",
	"mentions",
	"mention_count",
}

// Writer writes one CSV batch file per run into a directory
type Writer struct {
	dir    string
	logger logger.Logger
}

// NewWriter creates dir if needed
func NewWriter(dir string, log logger.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{dir: dir, logger: log}, nil
}

// Dir returns the output directory path
func (w *Writer) Dir() string {
	return w.dir
}

// FileName returns {brand}_{YYYYMMDD}.csv for a target day
func FileName(brandName, targetDay string) (string, error) {
	day, err := time.Parse(time.DateOnly, targetDay)
	if err != nil {
		return "", fmt.Errorf("invalid target day %q: %w", targetDay, err)
	}
	name := sanitize(brandName)
	if name == "" {
		return "", fmt.Errorf("brand name %q is not usable in a file name", brandName)
	}
	return fmt.Sprintf("%s_%s.csv", name, day.Format("20060102")), nil
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	return strings.Trim(strings.TrimSpace(name), ".")
}

// Write stores records as the batch file of brandName for targetDay,
// replacing any earlier file for the same day. It returns the file path.
func (w *Writer) Write(brandName, targetDay string, records []models.PostRecord) (string, error) {
	name, err := FileName(brandName, targetDay)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, name)

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	if err := writeCSV(file, records); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to sync batch file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close batch file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	w.logger.InfoWithFields("Batch file written", map[string]interface{}{
		"path":    path,
		"records": len(records),
	})
	return path, nil
}

func writeCSV(file *os.File, records []models.PostRecord) error {
	if _, err := file.WriteString(bom); err != nil {
		return fmt.Errorf("failed to write batch file: %w", err)
	}

	cw := csv.NewWriter(file)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.PostID,
			r.AuthorID,
			r.BrandName,
			r.BrandID,
			r.PostURL,
			r.MediaURL,
			r.PublishDate,
			r.MentionsString(),
			strconv.Itoa(r.MentionCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.PostID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write batch file: %w", err)
	}
	return nil
}
