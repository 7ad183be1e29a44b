package models

import "time"

// Action values recorded against a review stage. ActionEscalated is system
// authored (ReviewerID 0) when an SLA breach flips a stage to escalated.
const (
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
	ActionReturned  = "returned"
	ActionCommented = "commented"
	ActionEscalated = "escalated"
)

// SystemReviewerID marks actions emitted by the engine itself rather than a
// team member.
const SystemReviewerID = 0

// ReviewStageAction is the append-only audit record for reviews. Rows are never
// updated or deleted; the ordered sequence for a review is its full history and
// replaying it reproduces the review's current stage and status.
type ReviewStageAction struct {
	ActionID   int       `gorm:"primaryKey;column:action_id" json:"action_id"`
	ActionUUID string    `gorm:"column:action_uuid;unique" json:"action_uuid"`
	ReviewID   int       `gorm:"column:review_id" json:"review_id"`
	StageOrder int       `gorm:"column:stage_order" json:"stage_order"`
	ReviewerID int       `gorm:"column:reviewer_id" json:"reviewer_id"`
	Action     string    `gorm:"column:action" json:"action"`
	Comments   *string   `gorm:"column:comments" json:"comments,omitempty"`
	ActedAt    time.Time `gorm:"column:acted_at" json:"acted_at"`

	// Relations
	Reviewer *User `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

// TableName specifies the table name for ReviewStageAction.
func (ReviewStageAction) TableName() string {
	return "review_stage_actions"
}
