package models

import "time"

// Experience is a user-generated content item. It is hidden while its owner
// is banned.
type Experience struct {
	ID           string             `json:"id" bson:"_id" firestore:"-"`
	UserID       string             `json:"userId" bson:"user_id" firestore:"userId"`
	Title        string             `json:"title" bson:"title" firestore:"title"`
	Description  string             `json:"description" bson:"description,omitempty" firestore:"description,omitempty"`
	Reports      []ExperienceReport `json:"reports" bson:"reports" firestore:"reports"`
	IsHidden     bool               `json:"isHidden" bson:"is_hidden" firestore:"isHidden"`
	HiddenReason *string            `json:"hiddenReason" bson:"hidden_reason" firestore:"hiddenReason"`
	HiddenAt     *time.Time         `json:"hiddenAt" bson:"hidden_at" firestore:"hiddenAt"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updated_at" firestore:"updatedAt"`
}

// ExperienceReport is a complaint embedded in the reported experience.
type ExperienceReport struct {
	ReportedBy string    `json:"reportedBy" bson:"reported_by" firestore:"reportedBy"`
	Reason     string    `json:"reason" bson:"reason" firestore:"reason"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at" firestore:"createdAt"`
}

// Clone returns a copy that does not share the reports slice.
func (e Experience) Clone() Experience {
	out := e
	if e.Reports != nil {
		out.Reports = make([]ExperienceReport, len(e.Reports))
		copy(out.Reports, e.Reports)
	}
	return out
}
