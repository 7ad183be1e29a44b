package services

import (
	"fmt"
	"log"
	"time"

	"grant-review-api/config"
	"grant-review-api/models"

	"gorm.io/gorm"
)

// NotificationService turns engine outcomes into in-app notification rows and,
// for escalations, SMTP mail to the team. It is a consumer of the engine's
// output: every method is best-effort and failures are logged, never returned
// into the action path.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) ReviewStarted(review *models.ApplicationReview, wf *models.ReviewWorkflow) {
	s.notifyTeam(review.ApplicationID, "Review started",
		fmt.Sprintf("A review was started using workflow %q.", wf.Name), "info")
}

func (s *NotificationService) ActionRecorded(review *models.ApplicationReview, wf *models.ReviewWorkflow, action *models.ReviewStageAction) {
	switch review.Status {
	case models.ReviewStatusApproved:
		s.notifyTeam(review.ApplicationID, "Application approved",
			"The review completed: the application was approved.", "success")
	case models.ReviewStatusRejected:
		s.notifyTeam(review.ApplicationID, "Application rejected",
			"The review completed: the application was rejected.", "error")
	default:
		if action.Action == models.ActionReturned {
			stage := stageName(wf, review.CurrentStage)
			s.notifyTeam(review.ApplicationID, "Review returned",
				fmt.Sprintf("The review was returned to stage %q.", stage), "warning")
		}
	}
}

func (s *NotificationService) ReviewEscalated(review *models.ApplicationReview, wf *models.ReviewWorkflow, stage *models.ReviewStage) {
	message := fmt.Sprintf("Stage %q exceeded its %d hour SLA and was escalated.", stage.StageName, stage.SLAHours)
	s.notifyTeam(review.ApplicationID, "Review escalated", message, "warning")

	emails, err := s.teamEmails(review.ApplicationID)
	if err != nil {
		log.Printf("notification: team emails for application %d: %v", review.ApplicationID, err)
		return
	}
	if len(emails) == 0 {
		return
	}
	subject := fmt.Sprintf("[Grant Review] Escalation on application %d", review.ApplicationID)
	html := fmt.Sprintf("<p>%s</p><p>Please prioritise this review.</p>", message)
	if err := config.SendMail(emails, subject, html); err != nil {
		log.Printf("notification: escalation mail for application %d: %v", review.ApplicationID, err)
	}
}

// notifyTeam inserts one notification row per live team member.
func (s *NotificationService) notifyTeam(applicationID int, title, message, notifType string) {
	members, err := s.teamMembers(applicationID)
	if err != nil {
		log.Printf("notification: team lookup for application %d: %v", applicationID, err)
		return
	}

	now := time.Now()
	appID := uint(applicationID)
	for _, member := range members {
		notification := models.Notification{
			UserID:               uint(member.UserID),
			Title:                title,
			Message:              message,
			Type:                 notifType,
			RelatedApplicationID: &appID,
			CreateAt:             now,
		}
		if err := s.db.Create(&notification).Error; err != nil {
			log.Printf("notification: create for user %d: %v", member.UserID, err)
		}
	}
}

func (s *NotificationService) teamMembers(applicationID int) ([]models.ApplicationTeamMember, error) {
	var members []models.ApplicationTeamMember
	err := s.db.Where("application_id = ? AND delete_at IS NULL", applicationID).Find(&members).Error
	return members, err
}

func (s *NotificationService) teamEmails(applicationID int) ([]string, error) {
	var emails []string
	err := s.db.Model(&models.User{}).
		Joins("JOIN application_team_members ON application_team_members.user_id = users.user_id").
		Where("application_team_members.application_id = ? AND application_team_members.delete_at IS NULL AND users.delete_at IS NULL", applicationID).
		Pluck("users.email", &emails).Error
	return emails, err
}

func stageName(wf *models.ReviewWorkflow, stageIndex int) string {
	if stageIndex >= 0 && stageIndex < len(wf.Stages) {
		return wf.Stages[stageIndex].StageName
	}
	return fmt.Sprintf("stage %d", stageIndex)
}
