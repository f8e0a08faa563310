package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sadopc/greencampus/internal/metrics"
)

// ToCSV writes one row per record, followed by a Total row per category.
// Undefined changes are written as an empty cell.
func ToCSV(snap metrics.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Category", "Period", "Current", "Previous", "Change (%)", "Unit"}); err != nil {
		return err
	}

	for _, c := range metrics.Categories() {
		series := snap.Series(c)
		for _, r := range series {
			row := []string{
				c.Title(),
				r.Period,
				formatAmount(r.Current),
				formatAmount(r.Previous),
				formatChange(metrics.RowChange(r)),
				c.Unit(),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		agg := metrics.Aggregate(series)
		total := []string{
			c.Title(),
			"Total",
			formatAmount(agg.CurrentTotal),
			formatAmount(agg.PreviousTotal),
			formatChange(agg.Change),
			c.Unit(),
		}
		if err := w.Write(total); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatChange(ch metrics.Change) string {
	if !ch.Defined {
		return ""
	}
	return strconv.FormatFloat(ch.Percent, 'f', 2, 64)
}
