package collect

import (
	"strings"

	"github.com/elonfeng/festwatch/internal/store"
	"github.com/elonfeng/festwatch/pkg/steam"
)

// MapRecord normalizes a details payload plus the optional review and
// player-count results into the flat game/metrics shape. Absent lists
// render as empty strings; absent metrics stay nil.
func MapRecord(appid int64, d *steam.AppDetails, reviews *steam.ReviewSummary, players *int64) (*store.Game, store.Metrics) {
	game := &store.Game{
		AppID:              appid,
		Name:               d.Name,
		Genres:             joinDescriptions(d.Genres),
		Tags:               strings.Join(d.Tags, ", "),
		Categories:         joinDescriptions(d.Categories),
		HasAIDisclosure:    hasAIDisclosure(d.Categories),
		Developers:         strings.Join(d.Developers, ", "),
		Publishers:         strings.Join(d.Publishers, ", "),
		ReleaseDate:        d.ReleaseDate.Date,
		SupportedLanguages: d.SupportedLanguages,
	}
	if p := d.PriceOverview; p != nil {
		game.PriceInitial = p.Initial
		game.PriceFinal = p.Final
		game.PriceCurrency = p.Currency
	}

	var m store.Metrics
	if d.Recommendations != nil {
		total := d.Recommendations.Total
		m.Recommendations = &total
	}
	if reviews != nil {
		score := reviews.ReviewScore
		desc := reviews.ReviewScoreDesc
		pos := reviews.TotalPositive
		neg := reviews.TotalNegative
		total := reviews.TotalReviews
		m.ReviewScore = &score
		m.ReviewScoreDesc = &desc
		m.Positive = &pos
		m.Negative = &neg
		m.TotalReviews = &total
	}
	m.PlayerCount = players

	return game, m
}

func joinDescriptions(entries []steam.Descriptor) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Description)
	}
	return strings.Join(parts, ", ")
}

// hasAIDisclosure reports whether any category label reads as an AI
// content disclosure: "AI" as-is, or "ai generated" in any casing.
func hasAIDisclosure(categories []steam.Descriptor) bool {
	for _, c := range categories {
		if strings.Contains(c.Description, "AI") {
			return true
		}
		if strings.Contains(strings.ToLower(c.Description), "ai generated") {
			return true
		}
	}
	return false
}
