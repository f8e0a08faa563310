package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/greencampus/internal/metrics"
)

type jsonExport struct {
	ExportedAt string         `json:"exported_at"`
	GreenScore int            `json:"green_score"`
	Rating     string         `json:"rating"`
	Categories []jsonCategory `json:"categories"`
}

type jsonCategory struct {
	Category      string       `json:"category"`
	Unit          string       `json:"unit"`
	CurrentTotal  float64      `json:"current_total"`
	PreviousTotal float64      `json:"previous_total"`
	ChangePercent *float64     `json:"change_percent"`
	Records       []jsonRecord `json:"records"`
}

type jsonRecord struct {
	Period        string   `json:"period"`
	Current       float64  `json:"current"`
	Previous      float64  `json:"previous"`
	ChangePercent *float64 `json:"change_percent"`
}

// ToJSON writes the snapshot with its derived values. Undefined changes are
// null.
func ToJSON(snap metrics.Snapshot, path string) error {
	score := metrics.ScoreFor(snap)
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		GreenScore: score,
		Rating:     metrics.Rating(score),
	}

	for _, c := range metrics.Categories() {
		series := snap.Series(c)
		agg := metrics.Aggregate(series)
		cat := jsonCategory{
			Category:      string(c),
			Unit:          c.Unit(),
			CurrentTotal:  agg.CurrentTotal,
			PreviousTotal: agg.PreviousTotal,
			ChangePercent: percent(agg.Change),
			Records:       make([]jsonRecord, 0, len(series)),
		}
		for _, r := range series {
			cat.Records = append(cat.Records, jsonRecord{
				Period:        r.Period,
				Current:       r.Current,
				Previous:      r.Previous,
				ChangePercent: percent(metrics.RowChange(r)),
			})
		}
		export.Categories = append(export.Categories, cat)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

func percent(ch metrics.Change) *float64 {
	if !ch.Defined {
		return nil
	}
	p := ch.Percent
	return &p
}
