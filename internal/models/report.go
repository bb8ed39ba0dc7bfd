package models

import (
	"strings"
	"time"
)

type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusResolved ReportStatus = "resolved"
)

// Report is a complaint against a user. ReporterID names the accused user,
// matching the field name the admin console has always stored; the
// complainant is ReportedBy.
type Report struct {
	ID           string       `json:"id" bson:"_id" firestore:"-"`
	ReporterID   string       `json:"reporterId" bson:"reporter_id" firestore:"reporterId"`
	ReportedBy   string       `json:"reportedBy" bson:"reported_by,omitempty" firestore:"reportedBy,omitempty"`
	ExperienceID string       `json:"experienceId,omitempty" bson:"experience_id,omitempty" firestore:"experienceId,omitempty"`
	Reason       string       `json:"reason" bson:"reason" firestore:"reason"`
	Status       ReportStatus `json:"status" bson:"status" firestore:"status"`
	Resolution   *string      `json:"resolution" bson:"resolution" firestore:"resolution"`
	ResolvedAt   *time.Time   `json:"resolvedAt" bson:"resolved_at" firestore:"resolvedAt"`
	ResolvedBy   *string      `json:"resolvedBy" bson:"resolved_by" firestore:"resolvedBy"`
	CreatedAt    time.Time    `json:"createdAt" bson:"created_at" firestore:"createdAt"`
}

// IsPending treats a missing status as pending, the state reports are created in.
func (r *Report) IsPending() bool {
	return r.Status == "" || r.Status == ReportStatusPending
}

type CreateReportRequest struct {
	ReporterID   string `json:"reporterId"`
	ExperienceID string `json:"experienceId"`
	Reason       string `json:"reason"`
}

func (r *CreateReportRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.ReporterID) == "" {
		errors["reporterId"] = "Reported user is required"
	}
	if strings.TrimSpace(r.Reason) == "" {
		errors["reason"] = "Reason is required"
	} else if len(r.Reason) > 2000 {
		errors["reason"] = "Reason is too long"
	}

	return errors
}

type ExperienceReportRequest struct {
	Reason string `json:"reason"`
}

func (r *ExperienceReportRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Reason) == "" {
		errors["reason"] = "Reason is required"
	} else if len(r.Reason) > 2000 {
		errors["reason"] = "Reason is too long"
	}

	return errors
}
