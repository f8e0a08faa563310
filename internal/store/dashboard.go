package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/greencampus/internal/metrics"
)

// FetchSnapshot loads the saved snapshot. ok is false when nothing has ever
// been saved.
func (s *Store) FetchSnapshot(ctx context.Context) (metrics.Snapshot, bool, error) {
	if _, err := s.GetSetting(ctx, settingDashboardUpdatedAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			return metrics.Snapshot{}, false, nil
		}
		return metrics.Snapshot{}, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, period, current_amount, previous_amount FROM dashboard_records ORDER BY category, position`,
	)
	if err != nil {
		return metrics.Snapshot{}, false, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer rows.Close()

	snap := metrics.Snapshot{Energy: metrics.Series{}, Water: metrics.Series{}, Waste: metrics.Series{}}
	for rows.Next() {
		var cat string
		var r metrics.WeeklyRecord
		if err := rows.Scan(&cat, &r.Period, &r.Current, &r.Previous); err != nil {
			return metrics.Snapshot{}, false, err
		}
		c, err := metrics.ParseCategory(cat)
		if err != nil {
			return metrics.Snapshot{}, false, err
		}
		switch c {
		case metrics.Energy:
			snap.Energy = append(snap.Energy, r)
		case metrics.Water:
			snap.Water = append(snap.Water, r)
		case metrics.Waste:
			snap.Waste = append(snap.Waste, r)
		}
	}
	if err := rows.Err(); err != nil {
		return metrics.Snapshot{}, false, err
	}
	return snap, true, nil
}

// SaveSnapshot replaces the stored snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap metrics.Snapshot) error {
	return s.SaveSnapshotAs(ctx, snap, "")
}

// SaveSnapshotAs replaces the stored snapshot in one transaction and records
// who saved it.
func (s *Store) SaveSnapshotAs(ctx context.Context, snap metrics.Snapshot, by string) error {
	if err := metrics.ValidateSnapshot(snap); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboard_records`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for _, c := range metrics.Categories() {
		for i, r := range snap.Series(c) {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO dashboard_records (category, position, period, current_amount, previous_amount) VALUES (?, ?, ?, ?, ?)`,
				string(c), i, r.Period, r.Current, r.Previous,
			)
			if err != nil {
				return fmt.Errorf("insert %s record %d: %w", c, i, err)
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := setSetting(ctx, tx, settingDashboardUpdatedAt, now); err != nil {
		return err
	}
	if err := setSetting(ctx, tx, settingDashboardUpdatedBy, by); err != nil {
		return err
	}
	return tx.Commit()
}

// DashboardInfo reports when the snapshot was last saved. It returns
// ErrNotFound when nothing has been saved.
func (s *Store) DashboardInfo(ctx context.Context) (DashboardInfo, error) {
	at, err := s.GetSetting(ctx, settingDashboardUpdatedAt)
	if err != nil {
		return DashboardInfo{}, err
	}
	info := DashboardInfo{}
	info.UpdatedAt, _ = time.Parse(time.RFC3339, at)
	info.UpdatedBy, _ = s.GetSetting(ctx, settingDashboardUpdatedBy)
	return info, nil
}
