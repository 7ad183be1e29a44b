package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"grant-review-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// casAttempts bounds the read-validate-write cycle. When all attempts lose the
// race the caller gets ConflictError and is expected to re-fetch and resubmit.
const casAttempts = 3

// Store views the processor needs. The concrete GORM stores satisfy them;
// tests substitute in-memory fakes.
type templateSource interface {
	Get(workflowID int) (*models.ReviewWorkflow, error)
	Default() (*models.ReviewWorkflow, error)
}

type membershipSource interface {
	MemberOf(applicationID, userID int) (*models.ApplicationTeamMember, error)
}

type reviewSource interface {
	Create(applicationID, workflowID int, now time.Time) (*models.ApplicationReview, error)
	GetByApplication(applicationID int) (*models.ApplicationReview, error)
	Actions(reviewID int) ([]models.ReviewStageAction, error)
	AppendAction(action *models.ReviewStageAction) error
	SaveWithAction(review *models.ApplicationReview, expectedVersion int, action *models.ReviewStageAction) error
	Cancel(review *models.ApplicationReview, expectedVersion int, now time.Time) error
}

// reviewNotifier receives engine outcomes. Delivery is fire-and-forget; a
// failed notification never fails the action that produced it.
type reviewNotifier interface {
	ReviewStarted(review *models.ApplicationReview, wf *models.ReviewWorkflow)
	ActionRecorded(review *models.ApplicationReview, wf *models.ReviewWorkflow, action *models.ReviewStageAction)
	ReviewEscalated(review *models.ApplicationReview, wf *models.ReviewWorkflow, stage *models.ReviewStage)
}

// ActionInput is one submitted review action. ActionUUID is an optional
// client-supplied idempotency key; the processor generates one otherwise, so
// internal CAS retries can never double-append the audit record.
type ActionInput struct {
	Action     string
	Comments   *string
	ActionUUID string
}

// ReviewDetail is the read model handed to the API layer. Everything beyond
// the embedded review row is derived on the fly from the bound workflow and
// the audit trail; none of it is ever stored.
type ReviewDetail struct {
	models.ApplicationReview
	CurrentStageName string                 `json:"current_stage_name"`
	StageEnteredAt   time.Time              `json:"stage_entered_at"`
	SLADeadline      time.Time              `json:"sla_deadline"`
	IsOverdue        bool                   `json:"is_overdue"`
	ProgressPercent  float64                `json:"progress_percent"`
	Workflow         *models.ReviewWorkflow `json:"workflow,omitempty"`
}

// ActionProcessor is the single entry point for everything that reads or
// mutates review state: it authorizes the actor, applies the transition table,
// appends the audit record and recomputes deadlines. Nothing else writes to
// application_reviews.
type ActionProcessor struct {
	templates templateSource
	members   membershipSource
	reviews   reviewSource
	sweeper   *EscalationSweeper
	notifier  reviewNotifier
	now       func() time.Time
}

// NewActionProcessor wires the processor and its lazy escalation sweeper over
// GORM-backed stores. notifier may be nil.
func NewActionProcessor(db *gorm.DB, notifier reviewNotifier) *ActionProcessor {
	templates := NewTemplateStore(db)
	reviews := NewReviewStore(db)
	p := &ActionProcessor{
		templates: templates,
		members:   NewMembershipRegistry(db),
		reviews:   reviews,
		notifier:  notifier,
		now:       time.Now,
	}
	p.sweeper = NewEscalationSweeper(templates, reviews, notifier)
	return p
}

// StartReview creates a review instance bound to the requested template, or
// the default template when none is given. Any live team member may start a
// review; a second active review for the application is a conflict.
func (p *ActionProcessor) StartReview(applicationID int, workflowID *int, actorID int) (*ReviewDetail, error) {
	member, err := p.members.MemberOf(applicationID, actorID)
	if err != nil {
		if isNotFound(err) {
			return nil, &PermissionDeniedError{Reason: "you are not a team member of this application"}
		}
		return nil, err
	}
	if !CanComment(member) {
		return nil, &PermissionDeniedError{Reason: "you are not a team member of this application"}
	}

	var wf *models.ReviewWorkflow
	if workflowID != nil {
		wf, err = p.templates.Get(*workflowID)
	} else {
		wf, err = p.templates.Default()
	}
	if err != nil {
		return nil, err
	}

	review, err := p.reviews.Create(applicationID, wf.WorkflowID, p.now())
	if err != nil {
		return nil, err
	}

	if p.notifier != nil {
		p.notifier.ReviewStarted(review, wf)
	}
	return p.buildDetail(review, wf, nil), nil
}

// GetReview returns the application's current review with all derived fields.
// Overdue auto-escalating stages are swept before the view is built, so a
// caller never sees a stale in_review on a breached stage.
func (p *ActionProcessor) GetReview(applicationID int) (*ReviewDetail, error) {
	review, err := p.reviews.GetByApplication(applicationID)
	if err != nil {
		return nil, err
	}
	wf, err := p.templates.Get(review.WorkflowID)
	if err != nil {
		return nil, err
	}
	actions, err := p.reviews.Actions(review.ReviewID)
	if err != nil {
		return nil, err
	}

	if p.sweeper != nil {
		escalation, err := p.sweeper.SweepReview(review, wf, actions)
		if err != nil {
			return nil, err
		}
		if escalation != nil {
			actions = append(actions, *escalation)
		}
	}

	return p.buildDetail(review, wf, actions), nil
}

// SubmitAction validates, authorizes and applies one action against the
// application's current review. Concurrent writers are resolved by re-reading
// and re-evaluating under a bounded compare-and-swap loop: the action either
// applies to the refreshed state, is rejected against it, or conflicts out.
func (p *ActionProcessor) SubmitAction(applicationID, actorID int, in ActionInput) (*ReviewDetail, error) {
	actionType := strings.ToLower(strings.TrimSpace(in.Action))
	if !ValidActionType(actionType) {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("unknown action %q", in.Action)}
	}

	member, err := p.members.MemberOf(applicationID, actorID)
	if err != nil {
		if isNotFound(err) {
			return nil, &PermissionDeniedError{Reason: "you are not a team member of this application"}
		}
		return nil, err
	}

	actionUUID := in.ActionUUID
	if actionUUID == "" {
		actionUUID = uuid.NewString()
	}

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		detail, err := p.applyAction(applicationID, actorID, member, actionType, in.Comments, actionUUID)
		if err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return detail, nil
	}
	return nil, lastErr
}

// applyAction runs one read-validate-write cycle.
func (p *ActionProcessor) applyAction(applicationID, actorID int, member *models.ApplicationTeamMember, actionType string, comments *string, actionUUID string) (*ReviewDetail, error) {
	review, err := p.reviews.GetByApplication(applicationID)
	if err != nil {
		return nil, err
	}
	if review.IsTerminal() {
		return nil, &InvalidStateError{Reason: "review is already " + review.Status, Terminal: true}
	}

	wf, err := p.templates.Get(review.WorkflowID)
	if err != nil {
		return nil, err
	}
	if review.CurrentStage < 0 || review.CurrentStage >= len(wf.Stages) {
		return nil, fmt.Errorf("review %d stage %d out of range for workflow %d", review.ReviewID, review.CurrentStage, wf.WorkflowID)
	}
	stage := &wf.Stages[review.CurrentStage]

	// Authorization happens against the stage the action lands on. Failures
	// leave no trace: no state change and no audit record.
	if actionType == models.ActionCommented {
		if !CanComment(member) {
			return nil, &PermissionDeniedError{Reason: "you are not a team member of this application"}
		}
	} else if !CanActOnStage(member, stage) {
		return nil, &PermissionDeniedError{
			Reason: fmt.Sprintf("stage %q requires role %s", stage.StageName, stage.RequiredRole),
		}
	}

	now := p.now()
	action := &models.ReviewStageAction{
		ActionUUID: actionUUID,
		ReviewID:   review.ReviewID,
		StageOrder: review.CurrentStage,
		ReviewerID: actorID,
		Action:     actionType,
		Comments:   comments,
		ActedAt:    now,
	}

	if actionType == models.ActionCommented {
		// Comments never mutate review state, so the append skips the CAS
		// cycle entirely.
		if err := p.reviews.AppendAction(action); err != nil {
			return nil, err
		}
		actions, err := p.reviews.Actions(review.ReviewID)
		if err != nil {
			return nil, err
		}
		return p.buildDetail(review, wf, actions), nil
	}

	updated := *review
	switch actionType {
	case models.ActionApproved:
		if review.CurrentStage == len(wf.Stages)-1 {
			updated.Status = models.ReviewStatusApproved
			updated.CompletedAt = &now
		} else {
			updated.CurrentStage = review.CurrentStage + 1
			updated.Status = models.ReviewStatusInReview
		}
	case models.ActionRejected:
		updated.Status = models.ReviewStatusRejected
		updated.CompletedAt = &now
	case models.ActionReturned:
		if review.CurrentStage > 0 {
			updated.CurrentStage = review.CurrentStage - 1
		}
		updated.Status = models.ReviewStatusInReview
	}

	if err := p.reviews.SaveWithAction(&updated, review.RowVersion, action); err != nil {
		return nil, err
	}

	if p.notifier != nil {
		p.notifier.ActionRecorded(&updated, wf, action)
	}

	actions, err := p.reviews.Actions(updated.ReviewID)
	if err != nil {
		return nil, err
	}
	return p.buildDetail(&updated, wf, actions), nil
}

// History returns the review's ordered audit trail.
func (p *ActionProcessor) History(applicationID int) ([]models.ReviewStageAction, error) {
	review, err := p.reviews.GetByApplication(applicationID)
	if err != nil {
		return nil, err
	}
	return p.reviews.Actions(review.ReviewID)
}

// CanReview is the UI pre-check: whether the actor could take a stage decision
// on the current review right now, with a human-readable reason when not.
func (p *ActionProcessor) CanReview(applicationID, actorID int) (bool, string, error) {
	review, err := p.reviews.GetByApplication(applicationID)
	if err != nil {
		if isNotFound(err) {
			return false, "no review exists for this application", nil
		}
		return false, "", err
	}
	if review.IsTerminal() {
		return false, "review is already " + review.Status, nil
	}

	member, err := p.members.MemberOf(applicationID, actorID)
	if err != nil {
		if isNotFound(err) {
			return false, "you are not a team member of this application", nil
		}
		return false, "", err
	}

	wf, err := p.templates.Get(review.WorkflowID)
	if err != nil {
		return false, "", err
	}
	stage := &wf.Stages[review.CurrentStage]
	if !CanActOnStage(member, stage) {
		return false, fmt.Sprintf("stage %q requires role %s", stage.StageName, stage.RequiredRole), nil
	}
	return true, "", nil
}

// CancelReview soft-deletes a non-terminal review. Only a team administrator
// may cancel; the audit trail is retained.
func (p *ActionProcessor) CancelReview(applicationID, actorID int) error {
	member, err := p.members.MemberOf(applicationID, actorID)
	if err != nil {
		if isNotFound(err) {
			return &PermissionDeniedError{Reason: "you are not a team member of this application"}
		}
		return err
	}
	if member.TeamRole != models.RoleAdministrator {
		return &PermissionDeniedError{Reason: "only a team administrator can cancel a review"}
	}

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		review, err := p.reviews.GetByApplication(applicationID)
		if err != nil {
			return err
		}
		if review.IsTerminal() {
			return &InvalidStateError{Reason: "review is already " + review.Status, Terminal: true}
		}
		if err := p.reviews.Cancel(review, review.RowVersion, p.now()); err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// buildDetail computes the derived read model.
func (p *ActionProcessor) buildDetail(review *models.ApplicationReview, wf *models.ReviewWorkflow, actions []models.ReviewStageAction) *ReviewDetail {
	detail := &ReviewDetail{
		ApplicationReview: *review,
		ProgressPercent:   ProgressPercent(review.CurrentStage, len(wf.Stages)),
		Workflow:          wf,
	}
	if review.CurrentStage >= 0 && review.CurrentStage < len(wf.Stages) {
		stage := &wf.Stages[review.CurrentStage]
		entered := StageEnteredAt(review, len(wf.Stages), actions)
		deadline := DeadlineFor(stage, entered)
		detail.CurrentStageName = stage.StageName
		detail.StageEnteredAt = entered
		detail.SLADeadline = deadline
		detail.IsOverdue = IsOverdue(deadline, p.now(), review.Status)
	}
	return detail
}

func isNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
