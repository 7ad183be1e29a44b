package models

import "time"

// ReviewWorkflow is an immutable review template. A published workflow is never
// updated in place; a change publishes a new row with Version+1 and existing
// reviews keep their original binding.
type ReviewWorkflow struct {
	WorkflowID  int        `gorm:"primaryKey;column:workflow_id" json:"workflow_id"`
	Name        string     `gorm:"column:workflow_name" json:"name"`
	Description *string    `gorm:"column:description" json:"description,omitempty"`
	IsDefault   bool       `gorm:"column:is_default" json:"is_default"`
	Version     int        `gorm:"column:version" json:"version"`
	CreatedBy   int        `gorm:"column:created_by" json:"created_by"`
	CreateAt    time.Time  `gorm:"column:create_at" json:"create_at"`
	DeleteAt    *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Stages []ReviewStage `gorm:"foreignKey:WorkflowID" json:"stages"`
}

// ReviewStage is one ordered step of a workflow. StageOrder values are a
// contiguous 0-based sequence within their workflow.
type ReviewStage struct {
	StageID      int    `gorm:"primaryKey;column:stage_id" json:"stage_id"`
	WorkflowID   int    `gorm:"column:workflow_id" json:"workflow_id"`
	StageOrder   int    `gorm:"column:stage_order" json:"stage_order"`
	StageName    string `gorm:"column:stage_name" json:"stage_name"`
	RequiredRole string `gorm:"column:required_role" json:"required_role"`
	SLAHours     int    `gorm:"column:sla_hours" json:"sla_hours"`
	AutoEscalate bool   `gorm:"column:auto_escalate" json:"auto_escalate"`
}

// TableName overrides
func (ReviewWorkflow) TableName() string {
	return "review_workflows"
}

func (ReviewStage) TableName() string {
	return "review_stages"
}
