package services

import "github.com/eventsphere/backend/internal/models"

// DefaultAutoBanReportThreshold applies when no valid threshold is configured.
const DefaultAutoBanReportThreshold = 3

// EvaluateBanPolicy maps a report count onto the four policy verdicts. Admins
// are exempt whatever their count; everyone else is banned once the count
// reaches the threshold and watched one report before it.
func EvaluateBanPolicy(totalReports int, isAdmin bool, threshold int) models.PolicyDecision {
	if threshold < 1 {
		threshold = DefaultAutoBanReportThreshold
	}
	if totalReports < 0 {
		totalReports = 0
	}

	if isAdmin {
		return models.PolicyDecision{Verdict: models.VerdictExempt, Threshold: threshold}
	}

	remaining := threshold - totalReports
	if remaining < 0 {
		remaining = 0
	}

	verdict := models.VerdictOK
	switch {
	case totalReports >= threshold:
		verdict = models.VerdictAutoBan
	case totalReports == threshold-1:
		verdict = models.VerdictWatch
	}

	return models.PolicyDecision{
		Verdict:         verdict,
		Threshold:       threshold,
		ReportsUntilBan: &remaining,
	}
}
