package services

import "github.com/eventsphere/backend/internal/models"

// AggregateReports counts, per user, the direct reports naming them plus every
// report embedded in the experiences they own. Records without an owner are
// ignored. The result is a snapshot of the inputs and is not cached.
func AggregateReports(reports []models.Report, experiences []models.Experience) map[string]models.ReportCount {
	counts := make(map[string]models.ReportCount)

	for i := range reports {
		r := &reports[i]
		if r.ReporterID == "" {
			continue
		}
		c := counts[r.ReporterID]
		c.TotalReports++
		if r.IsPending() {
			c.PendingReports++
		}
		counts[r.ReporterID] = c
	}

	for i := range experiences {
		e := &experiences[i]
		if e.UserID == "" || len(e.Reports) == 0 {
			continue
		}
		c := counts[e.UserID]
		c.TotalReports += len(e.Reports)
		counts[e.UserID] = c
	}

	return counts
}
