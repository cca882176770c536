package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagsync/pkg/clock"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/logger"
	"tagsync/pkg/models"
)

var (
	day1 = time.Date(2025, 6, 2, 0, 10, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
)

func newTestStore(t *testing.T, c clock.Clock) *SQLStore {
	t.Helper()
	return openTestStore(t, ":memory:", c)
}

func openTestStore(t *testing.T, dsn string, c clock.Clock) *SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, dsn, Options{Clock: c, Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func record(id string, mentions ...string) models.PostRecord {
	return models.PostRecord{
		PostID:       id,
		AuthorID:     "author_" + id,
		BrandID:      "acme.official",
		BrandName:    "acme",
		PostURL:      "https://www.instagram.com/p/" + id + "/",
		MediaURL:     "https://cdn.test/" + id + ".jpg",
		PublishDate:  "2025-06-01",
		Mentions:     mentions,
		MentionCount: len(mentions),
	}
}

func TestCommitInsertsNewRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &clock.Fixed{T: day1})

	res, err := s.Commit(ctx, []models.PostRecord{record("A", "@acme.official"), record("B", "@x", "@acme.official")})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Staged)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.True(t, res.CommittedAt.Equal(day1))

	row, err := s.Get(ctx, "B")
	require.NoError(t, err)
	require.NotNil(t, row)

	want := models.PersistedPostRow{
		PostRecord:  record("B", "@x", "@acme.official"),
		FirstSeenAt: day1,
		LastSeenAt:  day1,
		Active:      true,
	}
	if diff := cmp.Diff(want, *row); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitUpdatesExistingRows(t *testing.T) {
	ctx := context.Background()
	c := &clock.Fixed{T: day1}
	s := newTestStore(t, c)

	_, err := s.Commit(ctx, []models.PostRecord{record("A", "@a")})
	require.NoError(t, err)

	c.T = day2
	changed := record("A", "@a", "@b")
	changed.MediaURL = "https://cdn.test/A-v2.jpg"
	res, err := s.Commit(ctx, []models.PostRecord{changed, record("C")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Inserted)

	a, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.FirstSeenAt.Equal(day1), "first_seen_at is kept")
	assert.True(t, a.LastSeenAt.Equal(day2), "last_seen_at advances")
	assert.True(t, a.Active)
	assert.Equal(t, "https://cdn.test/A-v2.jpg", a.MediaURL)
	assert.Equal(t, []string{"@a", "@b"}, a.Mentions)
	assert.Equal(t, 2, a.MentionCount)

	c2, err := s.Get(ctx, "C")
	require.NoError(t, err)
	assert.True(t, c2.FirstSeenAt.Equal(day2))
	assert.True(t, c2.LastSeenAt.Equal(day2))
}

func TestCommitKeepsColumnsOutsideFieldSet(t *testing.T) {
	ctx := context.Background()
	c := &clock.Fixed{T: day1}
	s := newTestStore(t, c)

	_, err := s.Commit(ctx, []models.PostRecord{record("A", "@a")})
	require.NoError(t, err)

	// a rerun that only extracts mentions leaves the other columns empty
	narrowed, err := New(s.db, DriverSQLite, Options{
		Clock:  c,
		Logger: logger.NewNopLogger(),
		Fields: []string{FieldMentions},
	})
	require.NoError(t, err)

	c.T = day2
	rerun := record("A", "@a", "@b")
	rerun.MediaURL = ""
	rerun.PostURL = ""
	res, err := narrowed.Commit(ctx, []models.PostRecord{rerun})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	a, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/A.jpg", a.MediaURL)
	assert.Equal(t, "https://www.instagram.com/p/A/", a.PostURL)
	assert.Equal(t, []string{"@a", "@b"}, a.Mentions)
	assert.Equal(t, 2, a.MentionCount)
	assert.True(t, a.LastSeenAt.Equal(day2))
}

func TestNewRejectsUnknownField(t *testing.T) {
	s := newTestStore(t, &clock.Fixed{T: day1})
	_, err := New(s.db, DriverSQLite, Options{Fields: []string{"caption"}})
	assert.Error(t, err)
}

func TestCommitLeavesPermanentStageNameAlone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &clock.Fixed{T: day1})

	_, err := s.db.ExecContext(ctx, "CREATE TABLE tagged_posts_stage (note TEXT)")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "INSERT INTO tagged_posts_stage (note) VALUES ('keep')")
	require.NoError(t, err)

	_, err = s.Commit(ctx, []models.PostRecord{record("A")})
	require.NoError(t, err)

	var note string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT note FROM main.tagged_posts_stage").Scan(&note))
	assert.Equal(t, "keep", note)
}

func TestCommitIsIdempotentAcrossReruns(t *testing.T) {
	ctx := context.Background()
	c := &clock.Fixed{T: day1}
	s := newTestStore(t, c)
	batch := []models.PostRecord{record("A", "@a"), record("B")}

	_, err := s.Commit(ctx, batch)
	require.NoError(t, err)
	c.Advance(2 * time.Hour)
	res, err := s.Commit(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 2, res.Updated)

	rows, err := s.ListByBrand(ctx, "acme.official")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.True(t, r.FirstSeenAt.Equal(day1))
		assert.True(t, r.LastSeenAt.Equal(day1.Add(2*time.Hour)))
	}
}

func TestCommitEmptyBatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tagsync.db")
	s := openTestStore(t, path, &clock.Fixed{T: day1})

	_, err := s.Commit(ctx, []models.PostRecord{record("A")})
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err := s.Commit(ctx, nil)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errs.ErrEmptyBatch))

	_, err = s.Commit(ctx, []models.PostRecord{})
	assert.True(t, errors.Is(err, errs.ErrEmptyBatch))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCommitRollsBackOnMergeFailure(t *testing.T) {
	ctx := context.Background()
	c := &clock.Fixed{T: day1}
	s := newTestStore(t, c)

	_, err := s.Commit(ctx, []models.PostRecord{record("A")})
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `
		CREATE TRIGGER reject_boom BEFORE INSERT ON tagged_posts
		WHEN NEW.post_id = 'boom'
		BEGIN
			SELECT RAISE(ABORT, 'boom');
		END`)
	require.NoError(t, err)

	c.T = day2
	_, err = s.Commit(ctx, []models.PostRecord{record("A", "@new"), record("N"), record("boom")})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeCommit, errs.TypeOf(err))
	assert.True(t, errs.IsRetryable(err))

	a, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.LastSeenAt.Equal(day1), "update rolled back")
	assert.Empty(t, a.Mentions)

	n, err := s.Get(ctx, "N")
	require.NoError(t, err)
	assert.Nil(t, n, "insert rolled back")

	count, err := s.CountByBrand(ctx, "acme.official")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// the store stays usable after a rollback
	_, err = s.Commit(ctx, []models.PostRecord{record("N")})
	require.NoError(t, err)
}

func TestCommitCollapsesDuplicatePostIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &clock.Fixed{T: day1})

	first := record("A", "@old")
	last := record("A", "@new")
	res, err := s.Commit(ctx, []models.PostRecord{first, last})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Staged)

	a, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"@new"}, a.Mentions)
}

func TestCommitRejectsMissingPostID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, &clock.Fixed{T: day1})

	_, err := s.Commit(ctx, []models.PostRecord{record("")})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeCommit, errs.TypeOf(err))

	count, err := s.CountByBrand(ctx, "acme.official")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t, &clock.Fixed{T: day1})
	row, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestNewRejectsBadTable(t *testing.T) {
	_, err := Open(context.Background(), DriverSQLite, ":memory:", Options{Table: "posts;drop"})
	assert.Error(t, err)

	_, err = Open(context.Background(), "mysql", "x", Options{})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = CAST(? AS DATE)"
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = CAST($2 AS DATE)", postgresDialect.rebind(q))
}

func TestPostgresStageIsDroppedOnCommit(t *testing.T) {
	stmt := postgresDialect.createStage("tagged_posts_stage")
	assert.Contains(t, stmt, "CREATE TEMP TABLE tagged_posts_stage")
	assert.Contains(t, stmt, "publish_date  DATE")
	assert.Contains(t, stmt, "ON COMMIT DROP")
	assert.False(t, postgresDialect.dropStage)
}
