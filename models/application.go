package models

import "time"

// GrantApplication represents the grant_applications table. Reviews and team
// memberships attach to an application, never the other way around.
type GrantApplication struct {
	ApplicationID     int        `gorm:"primaryKey;column:application_id" json:"application_id"`
	ApplicationNumber string     `gorm:"column:application_number" json:"application_number"`
	Title             string     `gorm:"column:title" json:"title"`
	OwnerID           int        `gorm:"column:owner_id" json:"owner_id"`
	SubmittedAt       *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreateAt          time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt          time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt          *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// TableName specifies the table name for GrantApplication.
func (GrantApplication) TableName() string {
	return "grant_applications"
}
