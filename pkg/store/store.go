// Package store merges each run's batch of PostRecords into a durable record
// store that tracks when every post was first and last observed.
//
// A commit stages the whole batch in a temporary table and merges it into
// the target table keyed by post_id, all inside one transaction. Rows are
// never deleted and never deactivated.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"tagsync/pkg/clock"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/logger"
	"tagsync/pkg/models"
)

// DefaultTable is the target table name
const DefaultTable = "tagged_posts"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CommitResult summarises one merge
type CommitResult struct {
	Staged      int       `json:"staged"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	CommittedAt time.Time `json:"committed_at"`
}

// Upserter merges a batch into the record store
type Upserter interface {
	Commit(ctx context.Context, batch []models.PostRecord) (*CommitResult, error)
}

// Descriptive columns a rerun may refresh
const (
	FieldPostURL  = "post_url"
	FieldMediaURL = "media_url"
	FieldMentions = "mentions"
)

// AllFields refreshes every descriptive column
var AllFields = []string{FieldPostURL, FieldMediaURL, FieldMentions}

// Options configures a SQLStore
type Options struct {
	Table  string
	Clock  clock.Clock
	Logger logger.Logger
	// Fields lists the descriptive columns the extractor fills. Only these
	// are overwritten when a post is observed again; nil means AllFields.
	Fields []string
}

// SQLStore is the record store on top of database/sql
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	table   string
	clock   clock.Clock
	logger  logger.Logger
	refresh []string
}

// Open connects to the database for driver ("sqlite" or "postgres") and
// verifies the connection. The caller should call Close.
func Open(ctx context.Context, driver, dsn string, opts Options) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if d.name == DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if d.name == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := New(db, d.name, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle
func New(db *sql.DB, driver string, opts Options) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if !identPattern.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem(time.UTC)
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	refresh, err := refreshColumns(opts.Fields)
	if err != nil {
		return nil, err
	}
	if d.name == DriverSQLite {
		// temp tables and :memory: databases are per connection
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{
		db:      db,
		dialect: d,
		table:   opts.Table,
		clock:   opts.Clock,
		logger:  opts.Logger.WithField("table", opts.Table),
		refresh: refresh,
	}, nil
}

// refreshColumns expands fields into the columns updated on conflict
func refreshColumns(fields []string) ([]string, error) {
	if fields == nil {
		fields = AllFields
	}
	var cols []string
	for _, f := range fields {
		switch f {
		case FieldPostURL, FieldMediaURL:
			cols = append(cols, f)
		case FieldMentions:
			cols = append(cols, FieldMentions, "mention_count")
		default:
			return nil, fmt.Errorf("unknown field %q", f)
		}
	}
	return cols, nil
}

// updateSet is the ON CONFLICT assignment list of the merge
func (s *SQLStore) updateSet() string {
	set := []string{
		"last_seen_at = excluded.last_seen_at",
		"active = TRUE",
	}
	for _, col := range s.refresh {
		set = append(set, col+" = excluded."+col)
	}
	return strings.Join(set, ",\n\t\t\t")
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the target table and its index if they do not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.createTable(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *SQLStore) stageTable() string {
	return s.table + "_stage"
}

// Commit stages batch and merges it into the store in one transaction.
// An empty batch fails with ErrEmptyBatch before touching the database.
func (s *SQLStore) Commit(ctx context.Context, batch []models.PostRecord) (*CommitResult, error) {
	if len(batch) == 0 {
		return nil, errs.ErrEmptyBatch
	}

	start := time.Now()
	now := s.clock.Now().UTC()
	stage := s.stageTable()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, commitError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.dialect.tempSchema+"."+stage); err != nil {
		return nil, commitError("drop stale staging table", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.createStage(stage)); err != nil {
		return nil, commitError("create staging table", err)
	}

	if err := s.stageRows(ctx, tx, stage, batch); err != nil {
		return nil, err
	}

	var staged int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+stage).Scan(&staged); err != nil {
		return nil, commitError("count staged rows", err)
	}
	if staged == 0 {
		return nil, commitError("staging table is empty", nil)
	}

	var matched int
	matchQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s s JOIN %s t ON t.post_id = s.post_id`, stage, s.table)
	if err := tx.QueryRowContext(ctx, matchQuery).Scan(&matched); err != nil {
		return nil, commitError("count matching rows", err)
	}

	ts := now.Format(time.RFC3339Nano)
	merge := fmt.Sprintf(`
		INSERT INTO %[1]s (post_id, author_id, brand_name, brand_id, post_url, media_url, publish_date,
			mentions, mention_count, first_seen_at, last_seen_at, active)
		SELECT post_id, author_id, brand_name, brand_id, post_url, media_url, publish_date,
			mentions, mention_count, CAST(? AS %[3]s), CAST(? AS %[3]s), TRUE
		FROM %[2]s
		WHERE true
		ON CONFLICT (post_id) DO UPDATE SET
			%[4]s`,
		s.table, stage, s.dialect.timestampType, s.updateSet())
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(merge), ts, ts); err != nil {
		return nil, commitError("merge staged rows", err)
	}

	if s.dialect.dropStage {
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+s.dialect.tempSchema+"."+stage); err != nil {
			return nil, commitError("drop staging table", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, commitError("commit transaction", err)
	}

	result := &CommitResult{
		Staged:      staged,
		Inserted:    staged - matched,
		Updated:     matched,
		CommittedAt: now,
	}
	logger.LogCommit(s.logger, result.Staged, result.Inserted, result.Updated, time.Since(start))
	return result, nil
}

// stageRows inserts the batch into the staging table. Repeated post ids
// collapse to the last occurrence.
func (s *SQLStore) stageRows(ctx context.Context, tx *sql.Tx, stage string, batch []models.PostRecord) error {
	query := s.dialect.rebind(fmt.Sprintf(`
		INSERT INTO %s (post_id, author_id, brand_name, brand_id, post_url, media_url, publish_date, mentions, mention_count)
		VALUES (?, ?, ?, ?, ?, ?, CAST(? AS %s), ?, ?)
		ON CONFLICT (post_id) DO UPDATE SET
			author_id     = excluded.author_id,
			brand_name    = excluded.brand_name,
			brand_id      = excluded.brand_id,
			post_url      = excluded.post_url,
			media_url     = excluded.media_url,
			publish_date  = excluded.publish_date,
			mentions      = excluded.mentions,
			mention_count = excluded.mention_count`, stage, s.dialect.dateType))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return commitError("prepare staging insert", err)
	}
	defer stmt.Close()

	for _, r := range batch {
		if r.PostID == "" {
			return commitError("record without post id", nil)
		}
		_, err := stmt.ExecContext(ctx,
			r.PostID,
			r.AuthorID,
			r.BrandName,
			r.BrandID,
			r.PostURL,
			r.MediaURL,
			r.PublishDate,
			r.MentionsString(),
			r.MentionCount,
		)
		if err != nil {
			return commitError(fmt.Sprintf("stage post %s", r.PostID), err)
		}
	}
	return nil
}

const selectColumns = `post_id, author_id, brand_name, brand_id, post_url, media_url, publish_date,
	mentions, mention_count, first_seen_at, last_seen_at, active`

// Get returns the persisted row for postID, or nil when there is none
func (s *SQLStore) Get(ctx context.Context, postID string) (*models.PersistedPostRow, error) {
	query := s.dialect.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE post_id = ?`, selectColumns, s.table))
	row, err := scanRow(s.db.QueryRowContext(ctx, query, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}
	return row, nil
}

// ListByBrand returns every row for brandID, newest publish date first
func (s *SQLStore) ListByBrand(ctx context.Context, brandID string) ([]models.PersistedPostRow, error) {
	query := s.dialect.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE brand_id = ? ORDER BY publish_date DESC, post_id`, selectColumns, s.table))
	rows, err := s.db.QueryContext(ctx, query, brandID)
	if err != nil {
		return nil, fmt.Errorf("list posts for %s: %w", brandID, err)
	}
	defer rows.Close()

	var out []models.PersistedPostRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// CountByBrand returns the number of rows stored for brandID
func (s *SQLStore) CountByBrand(ctx context.Context, brandID string) (int, error) {
	var n int
	query := s.dialect.rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE brand_id = ?`, s.table))
	if err := s.db.QueryRowContext(ctx, query, brandID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts for %s: %w", brandID, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*models.PersistedPostRow, error) {
	var (
		r                   models.PersistedPostRow
		publishDate         string
		mentions            string
		firstSeen, lastSeen string
	)
	err := sc.Scan(
		&r.PostID,
		&r.AuthorID,
		&r.BrandName,
		&r.BrandID,
		&r.PostURL,
		&r.MediaURL,
		&publishDate,
		&mentions,
		&r.MentionCount,
		&firstSeen,
		&lastSeen,
		&r.Active,
	)
	if err != nil {
		return nil, err
	}

	if len(publishDate) > len(clock.DayLayout) {
		publishDate = publishDate[:len(clock.DayLayout)]
	}
	r.PublishDate = publishDate
	r.Mentions = models.ParseMentions(mentions)

	if r.FirstSeenAt, err = parseTimestamp(firstSeen); err != nil {
		return nil, fmt.Errorf("first_seen_at: %w", err)
	}
	if r.LastSeenAt, err = parseTimestamp(lastSeen); err != nil {
		return nil, fmt.Errorf("last_seen_at: %w", err)
	}
	return &r, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func commitError(msg string, err error) error {
	return errs.New(errs.ErrorTypeCommit, msg, err)
}
