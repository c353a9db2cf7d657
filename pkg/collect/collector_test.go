package collect

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/festwatch/internal/store"
	"github.com/elonfeng/festwatch/pkg/steam"
)

type fakeDiscoverer struct {
	ids []int64
	err error
}

func (f *fakeDiscoverer) Discover(ctx context.Context) ([]int64, error) {
	return f.ids, f.err
}

type fakeEnricher struct {
	details map[int64]*steam.AppDetails
	errs    map[int64]error
	reviews map[int64]*steam.ReviewSummary
	players map[int64]*int64
}

func (f *fakeEnricher) AppDetails(ctx context.Context, appid int64) (*steam.AppDetails, error) {
	if err := f.errs[appid]; err != nil {
		return nil, err
	}
	return f.details[appid], nil
}

func (f *fakeEnricher) ReviewSummary(ctx context.Context, appid int64) *steam.ReviewSummary {
	return f.reviews[appid]
}

func (f *fakeEnricher) PlayerCount(ctx context.Context, appid int64) *int64 {
	return f.players[appid]
}

func newCollectorStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "collect.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func simpleDetails(name string) *steam.AppDetails {
	return &steam.AppDetails{
		Name:   name,
		Genres: []steam.Descriptor{{Description: "Indie"}},
	}
}

func TestRunOncePartialFailureIsolation(t *testing.T) {
	s := newCollectorStore(t)
	enricher := &fakeEnricher{
		details: map[int64]*steam.AppDetails{
			1: simpleDetails("A"),
			3: simpleDetails("C"),
		},
		errs: map[int64]error{
			2: errors.New("connection reset"),
		},
	}
	c := New(&fakeDiscoverer{ids: []int64{1, 2, 3}}, enricher, s, 0)

	require.NoError(t, c.RunOnce(context.Background()), "one bad id must not abort the run")

	ctx := context.Background()
	a, err := s.GetGame(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", a.Name)

	_, err = s.GetGame(ctx, 2)
	assert.Error(t, err, "the failing id leaves no row")

	cGame, err := s.GetGame(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "C", cGame.Name)
}

func TestRunOnceEndToEnd(t *testing.T) {
	s := newCollectorStore(t)
	players := int64(17)
	enricher := &fakeEnricher{
		details: map[int64]*steam.AppDetails{
			100: {
				Name:       "Alpha Demo",
				Categories: []steam.Descriptor{{Description: "AI Generated Content"}},
				PriceOverview: &steam.PriceOverview{
					Initial: 999, Final: 499, Currency: "USD",
				},
			},
			// 200 is absent: the details endpoint reported success=false.
		},
		reviews: map[int64]*steam.ReviewSummary{
			100: {ReviewScore: 8, ReviewScoreDesc: "Very Positive", TotalReviews: 100},
		},
		players: map[int64]*int64{100: &players},
	}
	c := New(&fakeDiscoverer{ids: []int64{100, 200}}, enricher, s, 0)

	require.NoError(t, c.RunOnce(context.Background()))

	ctx := context.Background()
	games, err := s.ListGames(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, games, 1, "only the enriched id is persisted")

	g := games[0]
	assert.Equal(t, int64(100), g.AppID)
	assert.Equal(t, "Alpha Demo", g.Name)
	assert.True(t, g.HasAIDisclosure)
	assert.Equal(t, int64(499), g.PriceFinal)
	assert.Equal(t, "USD", g.PriceCurrency)

	snaps, err := s.ListSnapshots(ctx, 100, time.Time{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.NotNil(t, snaps[0].PlayerCount)
	assert.Equal(t, int64(17), *snaps[0].PlayerCount)
	require.NotNil(t, snaps[0].ReviewScore)
	assert.Equal(t, int64(8), *snaps[0].ReviewScore)

	none, err := s.ListSnapshots(ctx, 200, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunOnceLogsDeclinedIDAtDebug(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := newCollectorStore(t)
	// 200 is absent from the fake: the details endpoint declined it.
	enricher := &fakeEnricher{details: map[int64]*steam.AppDetails{100: simpleDetails("A")}}
	c := New(&fakeDiscoverer{ids: []int64{100, 200}}, enricher, s, 0)

	require.NoError(t, c.RunOnce(context.Background()))

	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "no details for app") {
			assert.Contains(t, line, "level=DEBUG", "skips are routine, not operator-facing")
			return
		}
	}
	t.Fatal("expected a skip log line for the declined id")
}

func TestRunOnceNoIDsIsANoop(t *testing.T) {
	s := newCollectorStore(t)
	c := New(&fakeDiscoverer{}, &fakeEnricher{}, s, 0)

	require.NoError(t, c.RunOnce(context.Background()))

	games, err := s.ListGames(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestRunOnceDiscoveryErrorPropagates(t *testing.T) {
	s := newCollectorStore(t)
	c := New(&fakeDiscoverer{err: errors.New("browser launch failed")}, &fakeEnricher{}, s, 0)

	err := c.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover app ids")
}

func TestRunOnceRepeatedRunsGrowTimeSeries(t *testing.T) {
	s := newCollectorStore(t)
	enricher := &fakeEnricher{details: map[int64]*steam.AppDetails{1: simpleDetails("A")}}
	c := New(&fakeDiscoverer{ids: []int64{1}}, enricher, s, 0)

	ctx := context.Background()
	require.NoError(t, c.RunOnce(ctx))
	require.NoError(t, c.RunOnce(ctx))
	require.NoError(t, c.RunOnce(ctx))

	games, err := s.ListGames(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, games, 1, "upsert keeps one current-state row")

	snaps, err := s.ListSnapshots(ctx, 1, time.Time{})
	require.NoError(t, err)
	assert.Len(t, snaps, 3, "every run appends one observation")
}
