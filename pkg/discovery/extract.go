package discovery

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	appHrefRe = regexp.MustCompile(`/app/(\d+)`)
	logoRe    = regexp.MustCompile(`/apps/(\d+)/`)
)

// IDSet is a deduplicated set of positive app ids.
type IDSet map[int64]struct{}

// Add inserts id and reports whether it was new. Non-positive ids are
// rejected.
func (s IDSet) Add(id int64) bool {
	if id <= 0 {
		return false
	}
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted returns the set as an ascending slice.
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ExtractIDs pulls app ids out of rendered listing markup two ways and
// unions them: the multi-valued data-ds-appid attribute on game cards,
// and /app/<digits> anchor hrefs. Returns how many ids were new to set.
func ExtractIDs(html string, set IDSet) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}

	added := 0
	doc.Find("[data-ds-appid]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("data-ds-appid")
		for _, tok := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
			if err != nil {
				continue
			}
			if set.Add(id) {
				added++
			}
		}
	})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		m := appHrefRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		if set.Add(id) {
			added++
		}
	})

	return added
}

// ExtractBrowseLinks collects the "see all" search links found inside
// catalog sections, deduplicated in document order.
func ExtractBrowseLinks(html, sectionSelector string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(sectionSelector).Find(`a[href*="/search/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links
}

// extractLogoID pulls an app id out of a capsule image URL.
func extractLogoID(logoURL string) (int64, bool) {
	m := logoRe.FindStringSubmatch(logoURL)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
