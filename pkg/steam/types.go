package steam

import (
	"encoding/json"
	"sort"
	"strconv"
)

// AppDetails is the per-app payload of the details endpoint.
type AppDetails struct {
	Name               string           `json:"name"`
	Genres             []Descriptor     `json:"genres"`
	Categories         []Descriptor     `json:"categories"`
	Tags               TagList          `json:"tags"`
	Developers         []string         `json:"developers"`
	Publishers         []string         `json:"publishers"`
	ReleaseDate        ReleaseDate      `json:"release_date"`
	SupportedLanguages string           `json:"supported_languages"`
	Recommendations    *Recommendations `json:"recommendations"`
	PriceOverview      *PriceOverview   `json:"price_overview"`
}

// Descriptor is a labeled entry in genre and category lists.
type Descriptor struct {
	Description string `json:"description"`
}

// ReleaseDate carries the display label of the release date.
type ReleaseDate struct {
	ComingSoon bool   `json:"coming_soon"`
	Date       string `json:"date"`
}

// Recommendations wraps the total recommendation count.
type Recommendations struct {
	Total int64 `json:"total"`
}

// PriceOverview carries amounts in integer minor currency units.
type PriceOverview struct {
	Initial  int64  `json:"initial"`
	Final    int64  `json:"final"`
	Currency string `json:"currency"`
}

// TagList decodes the store's tag payload, which arrives either as a
// mapping of numeric keys to labels or as a sequence of labeled entries.
// Any other shape decodes to nil rather than failing the whole payload.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	*t = nil
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		// Keys are numeric strings; order labels by key value.
		sort.Slice(keys, func(i, j int) bool {
			a, aerr := strconv.Atoi(keys[i])
			b, berr := strconv.Atoi(keys[j])
			if aerr != nil || berr != nil {
				return keys[i] < keys[j]
			}
			return a < b
		})
		for _, k := range keys {
			*t = append(*t, m[k])
		}
	case '[':
		var entries []Descriptor
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil
		}
		for _, e := range entries {
			*t = append(*t, e.Description)
		}
	}
	return nil
}

// ReviewSummary is the aggregate block of the reviews endpoint.
type ReviewSummary struct {
	ReviewScore     int64  `json:"review_score"`
	ReviewScoreDesc string `json:"review_score_desc"`
	TotalPositive   int64  `json:"total_positive"`
	TotalNegative   int64  `json:"total_negative"`
	TotalReviews    int64  `json:"total_reviews"`
}

type detailsEnvelope struct {
	Success bool        `json:"success"`
	Data    *AppDetails `json:"data"`
}

type reviewsEnvelope struct {
	Success      int           `json:"success"`
	QuerySummary ReviewSummary `json:"query_summary"`
}

type playersEnvelope struct {
	Response struct {
		PlayerCount int64 `json:"player_count"`
		Result      int   `json:"result"`
	} `json:"response"`
}
