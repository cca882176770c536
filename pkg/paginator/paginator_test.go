package paginator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagsync/pkg/clock"
	"tagsync/pkg/dateclass"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/extract"
	"tagsync/pkg/feed"
	"tagsync/pkg/feed/feedtest"
	"tagsync/pkg/logger"
	"tagsync/pkg/models"
)

const (
	newerTS = "2025-06-02T03:00:00Z"
	equalTS = "2025-06-01T03:00:00Z"
	olderTS = "2025-05-30T03:00:00Z"
)

var params = models.RunParams{BrandID: "acme.official", BrandName: "acme", TargetDay: "2025-06-01"}

func post(n int, ts string) feedtest.Post {
	return feedtest.Post{
		Href:      fmt.Sprintf("/user%d/p/POST%d/", n, n),
		Timestamp: ts,
		Media:     []feed.MediaElement{feedtest.Image(fmt.Sprintf("https://cdn.test/%d.jpg", n), "with @acme.official")},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SettleWait = 10 * time.Millisecond
	cfg.MaxRounds = 10
	return cfg
}

func newPaginator(s feed.Session, cfg Config) *Paginator {
	return New(s, dateclass.New(clock.Location(9)), extract.NewPipeline(), cfg, logger.NewNopLogger())
}

func TestStopsAtFifthOlder(t *testing.T) {
	posts := []feedtest.Post{
		post(1, newerTS),
		post(2, equalTS),
		post(3, equalTS),
		post(4, olderTS),
		post(5, olderTS),
		post(6, olderTS),
		post(7, olderTS),
		post(8, olderTS),
		post(9, equalTS),
		post(10, olderTS),
	}
	s := feedtest.New(100, posts...)

	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StopOlderStreak, res.StopReason)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "POST2", res.Records[0].PostID)
	assert.Equal(t, "POST3", res.Records[1].PostID)
	assert.Len(t, s.Opened, 8, "nothing after the fifth older post is inspected")
	assert.NotContains(t, s.Opened, "/user9/p/POST9/")
	assert.Equal(t, 0, s.Scrolls)
	assert.Equal(t, 1, res.Stats.Newer)
	assert.Equal(t, 5, res.Stats.Older)
}

func TestEqualResetsOlderStreak(t *testing.T) {
	posts := []feedtest.Post{
		post(1, olderTS), post(2, olderTS), post(3, olderTS), post(4, olderTS),
		post(5, equalTS),
		post(6, olderTS), post(7, olderTS), post(8, olderTS), post(9, olderTS),
		post(10, olderTS),
	}
	res, err := newPaginator(feedtest.New(100, posts...), testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StopOlderStreak, res.StopReason)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "POST5", res.Records[0].PostID)
}

func TestNewerAndParseFailureDoNotTouchStreak(t *testing.T) {
	posts := []feedtest.Post{
		post(1, olderTS), post(2, olderTS),
		post(3, newerTS), post(4, ""), post(5, "not a timestamp"),
		post(6, olderTS), post(7, olderTS), post(8, olderTS),
		post(9, equalTS),
	}
	s := feedtest.New(100, posts...)
	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StopOlderStreak, res.StopReason)
	assert.Empty(t, res.Records)
	assert.Equal(t, 2, res.Stats.ParseFailures)
	assert.NotContains(t, s.Opened, "/user9/p/POST9/")
}

func TestStagnantRoundsStop(t *testing.T) {
	s := feedtest.New(2, post(1, equalTS), post(2, newerTS), post(3, equalTS))
	cfg := testConfig()
	cfg.MaxRounds = 20

	res, err := newPaginator(s, cfg).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StopStagnant, res.StopReason)
	assert.Len(t, res.Records, 2)
	// two productive rounds, then three that add nothing
	assert.Equal(t, 5, res.Rounds)
	assert.Equal(t, 4, s.Scrolls)
	assert.LessOrEqual(t, s.Scrolls, cfg.MaxRounds)
	assert.Equal(t, []int{2, 3, 3, 3, 3}, res.SeenHistory)
}

func TestStagnationResetsOnNewContent(t *testing.T) {
	s := &feedtest.Session{
		Posts: []feedtest.Post{post(1, newerTS), post(2, newerTS), post(3, equalTS)},
		Snapshots: [][]string{
			{"/user1/p/POST1/"},
			{"/user1/p/POST1/"},
			{"/user1/p/POST1/"},
			{"/user1/p/POST1/", "/user2/p/POST2/"},
			{"/user2/p/POST2/", "/user3/p/POST3/"},
		},
	}
	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StopStagnant, res.StopReason)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, []int{1, 1, 1, 2, 3, 3, 3, 3}, res.SeenHistory)
}

func TestMaxRoundsStop(t *testing.T) {
	var posts []feedtest.Post
	for i := 0; i < 30; i++ {
		posts = append(posts, post(i, newerTS))
	}
	s := feedtest.New(3, posts...)
	cfg := testConfig()
	cfg.MaxRounds = 4

	res, err := newPaginator(s, cfg).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StopMaxRounds, res.StopReason)
	assert.Equal(t, cfg.MaxRounds, s.Scrolls)
	assert.Equal(t, cfg.MaxRounds+1, res.Rounds)
	assert.Len(t, s.Waits, cfg.MaxRounds)
	for _, step := range s.ScrollSteps {
		assert.Equal(t, cfg.ScrollStep, step)
	}
}

func TestSeenIsNonDecreasing(t *testing.T) {
	s := &feedtest.Session{
		Posts: []feedtest.Post{post(1, newerTS), post(2, newerTS), post(3, newerTS), post(4, newerTS)},
		Snapshots: [][]string{
			{"/user1/p/POST1/", "/user2/p/POST2/"},
			{"/user2/p/POST2/?img_index=1"},
			{"/user3/p/POST3/"},
			{"/user1/p/POST1/", "/user4/p/POST4/"},
		},
	}
	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	for i := 1; i < len(res.SeenHistory); i++ {
		assert.GreaterOrEqual(t, res.SeenHistory[i], res.SeenHistory[i-1])
	}
	assert.Equal(t, 4, res.Stats.Admitted)
}

func TestTargetCountStopsEarly(t *testing.T) {
	posts := []feedtest.Post{post(1, equalTS), post(2, equalTS), post(3, equalTS), post(4, equalTS)}
	s := feedtest.New(100, posts...)
	cfg := testConfig()
	cfg.TargetCount = 2

	res, err := newPaginator(s, cfg).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, StopTargetCount, res.StopReason)
	assert.Len(t, res.Records, 2)
	assert.Len(t, s.Opened, 2)
}

func TestAdsNeverOpened(t *testing.T) {
	s := &feedtest.Session{
		Posts: []feedtest.Post{post(1, equalTS)},
		Snapshots: [][]string{
			{"/brand/c/PROMO/", "/user1/p/POST1/?utm_source=x", "/c/PROMO2/"},
		},
	}
	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, []string{"/user1/p/POST1/"}, s.Opened)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "POST1", res.Records[0].PostID)
	assert.Equal(t, "user1", res.Records[0].AuthorID)
	// the same promoted links reappear on every snapshot
	assert.Greater(t, res.Rounds, 1)
	assert.Equal(t, 2, res.Stats.Rejected)
}

func TestDetailFailureIsSkipped(t *testing.T) {
	failing := post(2, olderTS)
	failing.FailOpen = true
	posts := []feedtest.Post{
		post(1, olderTS), failing, post(3, olderTS), post(4, olderTS), post(5, olderTS),
		post(6, equalTS), post(7, olderTS),
	}
	s := feedtest.New(100, posts...)

	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	// the failed candidate does not count toward the streak
	assert.Equal(t, 1, res.Stats.DetailFailures)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "POST6", res.Records[0].PostID)
	assert.Equal(t, len(s.Opened)-1, s.Closed)
}

func TestSessionExpiryAborts(t *testing.T) {
	s := feedtest.New(1, post(1, equalTS), post(2, equalTS), post(3, equalTS))
	s.ExpireAfterSnapshots = 2

	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrSessionExpired))
	assert.Equal(t, 2, s.SnapshotCalls)
}

func TestDismissesDialogsBeforeScanning(t *testing.T) {
	s := feedtest.New(100, post(1, equalTS))
	s.Present = map[feed.Capability]bool{feed.CapabilitySaveLoginInfo: true}

	res, err := newPaginator(s, testConfig()).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, []feed.Capability{feed.CapabilitySaveLoginInfo}, s.Dismissed)
	assert.Equal(t, 1, res.Stats.Dismissed)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPaginator(feedtest.New(1, post(1, equalTS)), testConfig()).Run(ctx, params)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.OlderStreakLimit = 0
	cfg.ScrollStep = -1

	_, err := newPaginator(feedtest.New(1), cfg).Run(context.Background(), params)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeConfig, errs.TypeOf(err))
}

func TestLogsStopReason(t *testing.T) {
	tl := logger.NewTestLogger()
	p := New(feedtest.New(100, post(1, equalTS)), nil, nil, testConfig(), tl)

	_, err := p.Run(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, tl.HasMessage("Scan finished"))
}
