package services

import (
	"grant-review-api/models"
)

// CanActOnStage decides whether a team member may take a stage decision
// (approve, reject, return). The member qualifies by matching the stage's
// required role, or by holding the can_approve override. All role checks in
// the engine funnel through here.
func CanActOnStage(member *models.ApplicationTeamMember, stage *models.ReviewStage) bool {
	if member == nil || member.DeleteAt != nil {
		return false
	}
	if member.Permissions.CanApprove {
		return true
	}
	return member.TeamRole == stage.RequiredRole
}

// CanComment decides whether a member may append a comment. Any live
// membership on the application qualifies.
func CanComment(member *models.ApplicationTeamMember) bool {
	return member != nil && member.DeleteAt == nil
}

// ValidActionType reports whether a caller-supplied action value is one the
// processor accepts. The escalated marker is system-only and is rejected here.
func ValidActionType(action string) bool {
	switch action {
	case models.ActionApproved, models.ActionRejected,
		models.ActionReturned, models.ActionCommented:
		return true
	}
	return false
}
