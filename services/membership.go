package services

import (
	"errors"

	"grant-review-api/models"

	"gorm.io/gorm"
)

// MembershipRegistry answers authorization lookups for the engine. It is
// read-only from the processor's point of view and never caches: a membership
// removed mid-flight fails the next check. Team management itself lives in the
// team controller.
type MembershipRegistry struct {
	db *gorm.DB
}

func NewMembershipRegistry(db *gorm.DB) *MembershipRegistry {
	return &MembershipRegistry{db: db}
}

// MemberOf returns the single live membership for (application, user).
func (r *MembershipRegistry) MemberOf(applicationID, userID int) (*models.ApplicationTeamMember, error) {
	var member models.ApplicationTeamMember
	err := r.db.Where("application_id = ? AND user_id = ? AND delete_at IS NULL", applicationID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "team member"}
		}
		return nil, err
	}
	return &member, nil
}

// RoleOf returns the user's role on the application, or NotFoundError.
func (r *MembershipRegistry) RoleOf(applicationID, userID int) (string, error) {
	member, err := r.MemberOf(applicationID, userID)
	if err != nil {
		return "", err
	}
	return member.TeamRole, nil
}

// PermissionsOf returns the user's override grants on the application.
func (r *MembershipRegistry) PermissionsOf(applicationID, userID int) (*models.TeamMemberPermissions, error) {
	member, err := r.MemberOf(applicationID, userID)
	if err != nil {
		return nil, err
	}
	perms := member.Permissions
	return &perms, nil
}
