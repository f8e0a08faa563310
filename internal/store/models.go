package store

import "time"

// DashboardInfo describes the last saved snapshot.
type DashboardInfo struct {
	UpdatedAt time.Time
	UpdatedBy string
}

const (
	settingDashboardUpdatedAt = "dashboard_updated_at"
	settingDashboardUpdatedBy = "dashboard_updated_by"
)
