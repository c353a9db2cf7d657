package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/festwatch/internal/store"
	"github.com/elonfeng/festwatch/pkg/steam"
)

// Discoverer enumerates currently listed app ids.
type Discoverer interface {
	Discover(ctx context.Context) ([]int64, error)
}

// Enricher fetches the three independent per-id data sources. Details
// returns (nil, nil) for ids the endpoint declines; reviews and player
// count degrade to nil on their own and never fail the id.
type Enricher interface {
	AppDetails(ctx context.Context, appid int64) (*steam.AppDetails, error)
	ReviewSummary(ctx context.Context, appid int64) *steam.ReviewSummary
	PlayerCount(ctx context.Context, appid int64) *int64
}

// Collector runs one discover → enrich-each → persist-each pass. It holds
// no state beyond its collaborators; cadence is the caller's concern.
type Collector struct {
	discoverer Discoverer
	enricher   Enricher
	store      store.Store
	delay      time.Duration
	log        *slog.Logger
}

// New creates a collector. delay is the politeness pause between ids.
func New(d Discoverer, e Enricher, s store.Store, delay time.Duration) *Collector {
	return &Collector{
		discoverer: d,
		enricher:   e,
		store:      s,
		delay:      delay,
		log:        slog.With(slog.String("component", "collect")),
	}
}

// RunOnce performs a full collection run. A single bad id never aborts
// the run; a run that discovers nothing is a no-op, not an error.
func (c *Collector) RunOnce(ctx context.Context) error {
	c.log.Info("starting collection run")

	ids, err := c.discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover app ids: %w", err)
	}
	if len(ids) == 0 {
		c.log.Info("no app ids discovered, nothing to collect")
		return nil
	}
	c.log.Info("discovered app ids", slog.Int("count", len(ids)))

	collected := 0
	for i, appid := range ids {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.delay):
			}
		}

		ok, err := c.collectOne(ctx, appid)
		if err != nil {
			c.log.Error("collect app failed",
				slog.Int64("appid", appid), slog.String("error", err.Error()))
			continue
		}
		if ok {
			collected++
		}
	}

	c.log.Info("collection run complete",
		slog.Int("collected", collected), slog.Int("discovered", len(ids)))
	return nil
}

func (c *Collector) collectOne(ctx context.Context, appid int64) (bool, error) {
	details, err := c.enricher.AppDetails(ctx, appid)
	if err != nil {
		return false, err
	}
	if details == nil {
		c.log.Debug("no details for app, skipping", slog.Int64("appid", appid))
		return false, nil
	}

	reviews := c.enricher.ReviewSummary(ctx, appid)
	players := c.enricher.PlayerCount(ctx, appid)

	game, metrics := MapRecord(appid, details, reviews, players)
	if err := c.store.RecordCollection(ctx, game, metrics); err != nil {
		return false, err
	}

	c.log.Info("collected",
		slog.String("name", game.Name),
		slog.Int64("appid", appid),
		slog.Int64("recommendations", orZero(metrics.Recommendations)),
		slog.Int64("players", orZero(metrics.PlayerCount)))
	return true, nil
}

func orZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
