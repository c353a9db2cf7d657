package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options configures the enrichment client. Zero-value URLs fall back to
// the public store endpoints.
type Options struct {
	DetailsURL string
	ReviewsURL string
	PlayersURL string
	Timeout    time.Duration
}

// Client fetches per-app enrichment data from the store's web API. The
// three fetchers are independent: a failure in one never blocks another.
type Client struct {
	http       *resty.Client
	detailsURL string
	reviewsURL string
	playersURL string
	log        *slog.Logger
}

// NewClient creates an enrichment client.
func NewClient(opts Options) *Client {
	if opts.DetailsURL == "" {
		opts.DetailsURL = "https://store.steampowered.com/api/appdetails"
	}
	if opts.ReviewsURL == "" {
		opts.ReviewsURL = "https://store.steampowered.com/appreviews"
	}
	if opts.PlayersURL == "" {
		opts.PlayersURL = "https://api.steampowered.com/ISteamUserStats/GetNumberOfCurrentPlayers/v1/"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 12 * time.Second
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)

	return &Client{
		http:       client,
		detailsURL: opts.DetailsURL,
		reviewsURL: opts.ReviewsURL,
		playersURL: opts.PlayersURL,
		log:        slog.With(slog.String("component", "steam")),
	}
}

// AppDetails fetches the details payload for appid. It returns (nil, nil)
// when the endpoint reports success=false for the id, which callers treat
// as a deliberate skip rather than an error.
func (c *Client) AppDetails(ctx context.Context, appid int64) (*AppDetails, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("appids", strconv.FormatInt(appid, 10)).
		SetQueryParam("l", "english").
		Get(c.detailsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch details %d: %w", appid, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("details %d: status %d", appid, resp.StatusCode())
	}

	var envelope map[string]detailsEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("decode details %d: %w", appid, err)
	}

	entry, ok := envelope[strconv.FormatInt(appid, 10)]
	if !ok || !entry.Success || entry.Data == nil {
		return nil, nil
	}
	return entry.Data, nil
}

// ReviewSummary fetches the review aggregate for appid. It never fails:
// transport errors and non-success responses degrade to nil after a
// warning, so review data is simply absent for this collection.
func (c *Client) ReviewSummary(ctx context.Context, appid int64) *ReviewSummary {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("json", "1").
		SetQueryParam("language", "all").
		SetQueryParam("purchase_type", "all").
		SetQueryParam("num_per_page", "0").
		Get(fmt.Sprintf("%s/%d", c.reviewsURL, appid))
	if err != nil {
		c.log.Warn("review summary unavailable", "appid", appid, "error", err)
		return nil
	}
	if resp.StatusCode() != 200 {
		c.log.Warn("review summary unavailable", "appid", appid, "status", resp.StatusCode())
		return nil
	}

	var envelope reviewsEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		c.log.Warn("review summary undecodable", "appid", appid, "error", err)
		return nil
	}
	if envelope.Success != 1 {
		return nil
	}
	summary := envelope.QuerySummary
	return &summary
}

// PlayerCount fetches the live concurrent player count for appid. It
// returns nil unless the endpoint reports its success code.
func (c *Client) PlayerCount(ctx context.Context, appid int64) *int64 {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("appid", strconv.FormatInt(appid, 10)).
		Get(c.playersURL)
	if err != nil {
		c.log.Warn("player count unavailable", "appid", appid, "error", err)
		return nil
	}
	if resp.StatusCode() != 200 {
		c.log.Warn("player count unavailable", "appid", appid, "status", resp.StatusCode())
		return nil
	}

	var envelope playersEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		c.log.Warn("player count undecodable", "appid", appid, "error", err)
		return nil
	}
	if envelope.Response.Result != 1 {
		return nil
	}
	count := envelope.Response.PlayerCount
	return &count
}
