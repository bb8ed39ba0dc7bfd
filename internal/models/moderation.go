package models

import (
	"strings"
	"time"
)

type ModerationState string

const (
	StateActive      ModerationState = "active"
	StateBanned      ModerationState = "banned"
	StateAdminExempt ModerationState = "admin_exempt"
)

// BanInfo is present only on banned users.
type BanInfo struct {
	Reason string     `json:"reason"`
	Actor  Actor      `json:"actor"`
	At     *time.Time `json:"at"`
	Auto   bool       `json:"auto"`
}

// ModerationStatus is the closed set of moderation states a user can be in.
type ModerationStatus struct {
	State ModerationState `json:"state"`
	Ban   *BanInfo        `json:"ban,omitempty"`
}

// Status derives the moderation state from the stored record. isAdmin is the
// fully resolved admin flag, which may also come from configuration.
func (u *User) Status(isAdmin bool) ModerationStatus {
	switch {
	case isAdmin:
		return ModerationStatus{State: StateAdminExempt}
	case u.IsBanned:
		info := &BanInfo{At: u.BannedAt, Auto: u.AutoBanned}
		if u.BanReason != nil {
			info.Reason = *u.BanReason
		}
		if u.BannedBy != nil {
			info.Actor.ID = *u.BannedBy
		}
		if u.BannedByEmail != nil {
			info.Actor.Email = *u.BannedByEmail
		}
		return ModerationStatus{State: StateBanned, Ban: info}
	default:
		return ModerationStatus{State: StateActive}
	}
}

// ReportCount is a point-in-time aggregate and is never persisted.
type ReportCount struct {
	TotalReports   int `json:"totalReports"`
	PendingReports int `json:"pendingReports"`
}

type Verdict string

const (
	VerdictOK      Verdict = "OK"
	VerdictWatch   Verdict = "WATCH"
	VerdictAutoBan Verdict = "AUTO_BAN"
	VerdictExempt  Verdict = "EXEMPT"
)

// PolicyDecision is the outcome of one ban policy evaluation. ReportsUntilBan
// is nil for exempt users.
type PolicyDecision struct {
	Verdict         Verdict `json:"verdict"`
	Threshold       int     `json:"threshold"`
	ReportsUntilBan *int    `json:"reportsUntilBan"`
}

// UserModerationView is one row of the admin users listing.
type UserModerationView struct {
	User     User             `json:"user"`
	IsAdmin  bool             `json:"isAdmin"`
	Status   ModerationStatus `json:"status"`
	Reports  ReportCount      `json:"reports"`
	Decision PolicyDecision   `json:"decision"`
}

type SweepResult struct {
	Threshold     int               `json:"threshold"`
	Evaluated     int               `json:"evaluated"`
	Banned        []string          `json:"banned"`
	AlreadyBanned int               `json:"alreadyBanned"`
	Exempt        int               `json:"exempt"`
	Failures      map[string]string `json:"failures,omitempty"`
}

type BanRequest struct {
	Reason string `json:"reason"`
}

func (r *BanRequest) Validate() map[string]string {
	errors := make(map[string]string)

	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		errors["reason"] = "Ban reason is required"
	} else if len(reason) > 500 {
		errors["reason"] = "Ban reason is too long"
	}

	return errors
}

// ModerationSettings is stored as the settings/moderation document.
type ModerationSettings struct {
	AutoBanReportThreshold int       `json:"autoBanReportThreshold" bson:"auto_ban_report_threshold" firestore:"autoBanReportThreshold"`
	UpdatedAt              time.Time `json:"updatedAt" bson:"updated_at" firestore:"updatedAt"`
	UpdatedBy              string    `json:"updatedBy,omitempty" bson:"updated_by,omitempty" firestore:"updatedBy,omitempty"`
}

type UpdateModerationSettingsRequest struct {
	AutoBanReportThreshold int `json:"autoBanReportThreshold"`
}

func (r *UpdateModerationSettingsRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.AutoBanReportThreshold < 1 {
		errors["autoBanReportThreshold"] = "Threshold must be at least 1"
	} else if r.AutoBanReportThreshold > 1000 {
		errors["autoBanReportThreshold"] = "Threshold is too large"
	}

	return errors
}
