package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

type searchResponse struct {
	Items []struct {
		Name string `json:"name"`
		Logo string `json:"logo"`
	} `json:"items"`
}

// searchIDs walks a browse link's JSON search endpoint page by page,
// extracting app ids from each item's capsule image URL. It continues
// while pages come back full and stops on an empty or short page.
func (e *Engine) searchIDs(ctx context.Context, browseURL string, set IDSet) (int, error) {
	base, err := url.Parse(e.opts.ListingURL)
	if err != nil {
		return 0, fmt.Errorf("parse listing url: %w", err)
	}
	ref, err := url.Parse(browseURL)
	if err != nil {
		return 0, fmt.Errorf("parse browse link %q: %w", browseURL, err)
	}
	target := base.ResolveReference(ref)

	q := target.Query()
	q.Set("json", "1")
	q.Set("count", strconv.Itoa(e.opts.SearchPageSize))

	added := 0
	for start := 0; start < e.opts.SearchMaxItems; start += e.opts.SearchPageSize {
		q.Set("start", strconv.Itoa(start))
		target.RawQuery = q.Encode()

		resp, err := e.http.R().SetContext(ctx).Get(target.String())
		if err != nil {
			return added, fmt.Errorf("search page start=%d: %w", start, err)
		}
		if resp.StatusCode() != 200 {
			return added, fmt.Errorf("search page start=%d: status %d", start, resp.StatusCode())
		}

		var page searchResponse
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return added, fmt.Errorf("decode search page start=%d: %w", start, err)
		}
		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			if id, ok := extractLogoID(item.Logo); ok && set.Add(id) {
				added++
			}
		}

		// A short page is the last page.
		if len(page.Items) < e.opts.SearchPageSize {
			break
		}
	}
	return added, nil
}
