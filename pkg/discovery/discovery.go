package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
)

// Options configures the discovery engine.
type Options struct {
	ListingURL      string
	OffsetParam     string
	OffsetStride    int
	MaxOffset       int
	SectionSelector string
	NavTimeout      time.Duration
	WaitTimeout     time.Duration
	SettleDelay     time.Duration
	BrowseLinks     bool
	SearchPageSize  int
	SearchMaxItems  int
	Headless        bool
}

// Engine enumerates currently listed app ids from a lazily rendered
// listing page. Catalog sections only issue their data request once they
// intersect the viewport, so every section is scrolled into view before
// the page is snapshotted for extraction.
type Engine struct {
	opts Options
	http *resty.Client
	log  *slog.Logger
}

// New creates a discovery engine.
func New(opts Options) *Engine {
	if opts.OffsetParam == "" {
		opts.OffsetParam = "offset"
	}
	if opts.OffsetStride <= 0 {
		opts.OffsetStride = 50
	}
	if opts.MaxOffset <= 0 {
		opts.MaxOffset = 2000
	}
	if opts.SectionSelector == "" {
		opts.SectionSelector = `div[id^='SaleSection_']`
	}
	if opts.NavTimeout == 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 1500 * time.Millisecond
	}
	if opts.SearchPageSize <= 0 {
		opts.SearchPageSize = 50
	}
	if opts.SearchMaxItems <= 0 {
		opts.SearchMaxItems = 2000
	}

	client := resty.New()
	client.SetTimeout(opts.WaitTimeout)

	return &Engine{
		opts: opts,
		http: client,
		log:  slog.With(slog.String("component", "discovery")),
	}
}

// Discover walks the listing page at a fixed offset stride and returns
// the deduplicated set of app ids found, ascending. The offset loop stops
// when an iteration beyond the first yields no new ids or when the
// section wait times out; per-offset failures degrade to "no ids from
// this step" and never abort discovery.
func (e *Engine) Discover(ctx context.Context) ([]int64, error) {
	set := make(IDSet)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelTab()

	// Pre-seed consent cookies so the page renders its full catalog
	// without interactive prompts.
	if err := chromedp.Run(tabCtx, seedConsentCookies(e.opts.ListingURL)); err != nil {
		return nil, fmt.Errorf("seed consent cookies: %w", err)
	}

	browseSeen := make(map[string]bool)
	var browseLinks []string

	for offset := 0; offset <= e.opts.MaxOffset; offset += e.opts.OffsetStride {
		res := e.collectOffset(tabCtx, offset, set)
		if res.timedOut {
			e.log.Warn("section wait timed out, treating as end of listing",
				slog.Int("offset", offset))
			break
		}
		if res.err != nil {
			e.log.Warn("offset yielded no ids",
				slog.Int("offset", offset), slog.String("error", res.err.Error()))
			continue
		}

		for _, link := range res.browseLinks {
			if !browseSeen[link] {
				browseSeen[link] = true
				browseLinks = append(browseLinks, link)
			}
		}

		e.log.Info("scanned offset",
			slog.Int("offset", offset), slog.Int("new_ids", res.added), slog.Int("total", len(set)))
		if offset > 0 && res.added == 0 {
			e.log.Info("no new ids at offset, end of listing", slog.Int("offset", offset))
			break
		}
	}

	// The browser and its network resources are only needed for the
	// page walk; release them before the supplementary search path.
	cancelTab()
	cancelAlloc()

	for _, link := range browseLinks {
		added, err := e.searchIDs(ctx, link, set)
		if err != nil {
			e.log.Warn("browse search failed",
				slog.String("link", link), slog.String("error", err.Error()))
		}
		if added > 0 {
			e.log.Info("browse search added ids",
				slog.String("link", link), slog.Int("new_ids", added))
		}
	}

	return set.Sorted(), nil
}

type offsetResult struct {
	added       int
	browseLinks []string
	timedOut    bool
	err         error
}

func (e *Engine) collectOffset(tabCtx context.Context, offset int, set IDSet) offsetResult {
	pageURL, err := e.offsetURL(offset)
	if err != nil {
		return offsetResult{err: err}
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, e.opts.NavTimeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx, chromedp.Navigate(pageURL)); err != nil {
		return offsetResult{err: fmt.Errorf("navigate %s: %w", pageURL, err)}
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, e.opts.WaitTimeout)
	defer cancelWait()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(e.opts.SectionSelector, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return offsetResult{timedOut: true}
		}
		return offsetResult{err: fmt.Errorf("wait for sections: %w", err)}
	}

	var nodes []*cdp.Node
	if err := chromedp.Run(tabCtx,
		chromedp.Nodes(e.opts.SectionSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	); err != nil {
		return offsetResult{err: fmt.Errorf("list sections: %w", err)}
	}

	for _, n := range nodes {
		scrollCtx, cancelScroll := context.WithTimeout(tabCtx, e.opts.WaitTimeout+e.opts.SettleDelay)
		err := chromedp.Run(scrollCtx,
			chromedp.ScrollIntoView([]cdp.NodeID{n.NodeID}, chromedp.ByNodeID),
			chromedp.Sleep(e.opts.SettleDelay),
		)
		cancelScroll()
		if err != nil {
			e.log.Warn("scroll section",
				slog.Int("offset", offset), slog.String("error", err.Error()))
		}
	}

	var html string
	htmlCtx, cancelHTML := context.WithTimeout(tabCtx, e.opts.NavTimeout)
	defer cancelHTML()
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return offsetResult{err: fmt.Errorf("snapshot page: %w", err)}
	}

	res := offsetResult{added: ExtractIDs(html, set)}
	if e.opts.BrowseLinks {
		res.browseLinks = ExtractBrowseLinks(html, e.opts.SectionSelector)
	}
	return res
}

func (e *Engine) offsetURL(offset int) (string, error) {
	u, err := url.Parse(e.opts.ListingURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	q.Set(e.opts.OffsetParam, strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func seedConsentCookies(listingURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		u, err := url.Parse(listingURL)
		if err != nil {
			return fmt.Errorf("parse listing url: %w", err)
		}

		expires := cdp.TimeSinceEpoch(time.Now().AddDate(1, 0, 0))
		cookies := []struct{ name, value string }{
			{"birthtime", "568022401"},
			{"lastagecheckage", "1-January-1988"},
			{"wants_mature_content", "1"},
		}
		for _, c := range cookies {
			err := network.SetCookie(c.name, c.value).
				WithDomain(u.Hostname()).
				WithPath("/").
				WithExpires(&expires).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.name, err)
			}
		}
		return nil
	})
}
