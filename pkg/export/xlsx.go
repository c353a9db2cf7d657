package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/elonfeng/festwatch/internal/store"
)

// WriteXLSX dumps the current game state and the latest snapshot per game
// into a spreadsheet at path.
func WriteXLSX(ctx context.Context, r store.Reader, path string) error {
	games, err := r.ListGames(ctx, store.ListOpts{})
	if err != nil {
		return fmt.Errorf("export games: %w", err)
	}
	snaps, err := r.LatestSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("export snapshots: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Games"); err != nil {
		return fmt.Errorf("rename games sheet: %w", err)
	}
	if err := writeGamesSheet(f, games); err != nil {
		return err
	}

	if _, err := f.NewSheet("Snapshots"); err != nil {
		return fmt.Errorf("create snapshots sheet: %w", err)
	}
	if err := writeSnapshotsSheet(f, snaps); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save export %s: %w", path, err)
	}
	return nil
}

func writeGamesSheet(f *excelize.File, games []store.Game) error {
	header := []any{
		"appid", "name", "genres", "tags", "categories", "has_ai_disclosure",
		"developers", "publishers", "release_date", "supported_languages",
		"price_initial", "price_final", "price_currency", "first_seen", "last_updated",
	}
	if err := f.SetSheetRow("Games", "A1", &header); err != nil {
		return fmt.Errorf("write games header: %w", err)
	}

	for i, g := range games {
		row := []any{
			g.AppID, g.Name, g.Genres, g.Tags, g.Categories, g.HasAIDisclosure,
			g.Developers, g.Publishers, g.ReleaseDate, g.SupportedLanguages,
			g.PriceInitial, g.PriceFinal, g.PriceCurrency,
			g.FirstSeen.Format(time.RFC3339), g.LastUpdated.Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("games row %d: %w", i, err)
		}
		if err := f.SetSheetRow("Games", cell, &row); err != nil {
			return fmt.Errorf("write games row %d: %w", i, err)
		}
	}
	return nil
}

func writeSnapshotsSheet(f *excelize.File, snaps []store.Snapshot) error {
	header := []any{
		"appid", "recommendations", "review_score", "review_score_desc",
		"positive", "negative", "total_reviews", "player_count", "collected_at",
	}
	if err := f.SetSheetRow("Snapshots", "A1", &header); err != nil {
		return fmt.Errorf("write snapshots header: %w", err)
	}

	for i, s := range snaps {
		row := []any{
			s.AppID,
			cellValue(s.Recommendations), cellValue(s.ReviewScore), strValue(s.ReviewScoreDesc),
			cellValue(s.Positive), cellValue(s.Negative), cellValue(s.TotalReviews),
			cellValue(s.PlayerCount), s.CollectedAt.Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("snapshots row %d: %w", i, err)
		}
		if err := f.SetSheetRow("Snapshots", cell, &row); err != nil {
			return fmt.Errorf("write snapshots row %d: %w", i, err)
		}
	}
	return nil
}

// cellValue keeps NULL metrics as blank cells rather than zeroes.
func cellValue(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func strValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
