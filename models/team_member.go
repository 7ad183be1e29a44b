package models

import "time"

// Closed set of per-application review roles.
const (
	RolePrincipalInvestigator = "principal_investigator"
	RoleCoInvestigator        = "co_investigator"
	RoleGrantWriter           = "grant_writer"
	RoleReviewer              = "reviewer"
	RoleAdministrator         = "administrator"
)

// ValidTeamRole reports whether role belongs to the closed role set.
func ValidTeamRole(role string) bool {
	switch role {
	case RolePrincipalInvestigator, RoleCoInvestigator, RoleGrantWriter,
		RoleReviewer, RoleAdministrator:
		return true
	}
	return false
}

// TeamMemberPermissions are override grants carried on a membership. CanApprove
// lets a member act on any stage regardless of the stage's required role.
type TeamMemberPermissions struct {
	CanEdit    bool    `gorm:"column:can_edit" json:"can_edit"`
	CanApprove bool    `gorm:"column:can_approve" json:"can_approve"`
	CanSubmit  bool    `gorm:"column:can_submit" json:"can_submit"`
	Sections   *string `gorm:"column:sections" json:"sections,omitempty"`
}

// ApplicationTeamMember binds a user to an application with one role. A user
// holds at most one live membership per application; the team outlives any
// single review instance.
type ApplicationTeamMember struct {
	MemberID      int                   `gorm:"primaryKey;column:member_id" json:"member_id"`
	ApplicationID int                   `gorm:"column:application_id" json:"application_id"`
	UserID        int                   `gorm:"column:user_id" json:"user_id"`
	TeamRole      string                `gorm:"column:team_role" json:"role"`
	Permissions   TeamMemberPermissions `gorm:"embedded" json:"permissions"`
	AddedBy       int                   `gorm:"column:added_by" json:"added_by"`
	CreateAt      time.Time             `gorm:"column:create_at" json:"create_at"`
	UpdateAt      time.Time             `gorm:"column:update_at" json:"update_at"`
	DeleteAt      *time.Time            `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for ApplicationTeamMember.
func (ApplicationTeamMember) TableName() string {
	return "application_team_members"
}
