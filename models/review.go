package models

import "time"

// Review statuses. Approved and rejected are terminal; pending is a legacy
// pre-start state the processor treats the same as in_review.
const (
	ReviewStatusPending   = "pending"
	ReviewStatusInReview  = "in_review"
	ReviewStatusApproved  = "approved"
	ReviewStatusRejected  = "rejected"
	ReviewStatusEscalated = "escalated"
)

// ApplicationReview is one review run of a grant application against a bound
// workflow template. RowVersion backs the compare-and-swap discipline: every
// write is conditioned on the version read, and bumps it.
type ApplicationReview struct {
	ReviewID      int        `gorm:"primaryKey;column:review_id" json:"review_id"`
	ApplicationID int        `gorm:"column:application_id" json:"application_id"`
	WorkflowID    int        `gorm:"column:workflow_id" json:"workflow_id"`
	CurrentStage  int        `gorm:"column:current_stage" json:"current_stage"`
	Status        string     `gorm:"column:status" json:"status"`
	StartedAt     time.Time  `gorm:"column:started_at" json:"started_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	RowVersion    int        `gorm:"column:row_version" json:"-"`
	DeleteAt      *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// IsTerminal reports whether the review reached a final decision.
func (r *ApplicationReview) IsTerminal() bool {
	return r.Status == ReviewStatusApproved || r.Status == ReviewStatusRejected
}

// IsActive reports whether the review still counts against the one-active-
// review-per-application rule.
func (r *ApplicationReview) IsActive() bool {
	return !r.IsTerminal() && r.DeleteAt == nil
}

// TableName specifies the table name for ApplicationReview.
func (ApplicationReview) TableName() string {
	return "application_reviews"
}
