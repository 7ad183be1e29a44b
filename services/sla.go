package services

import (
	"time"

	"grant-review-api/models"
)

// SLA clock. Deadlines and overdue flags are pure functions of stored state
// and are recomputed on every read; nothing here is cached or persisted.

// DeadlineFor computes the SLA deadline for a stage entered at the given time.
func DeadlineFor(stage *models.ReviewStage, enteredAt time.Time) time.Time {
	return enteredAt.Add(time.Duration(stage.SLAHours) * time.Hour)
}

// IsOverdue reports whether a non-terminal review has passed its deadline.
func IsOverdue(deadline, now time.Time, status string) bool {
	if status == models.ReviewStatusApproved || status == models.ReviewStatusRejected {
		return false
	}
	return now.After(deadline)
}

// StageEnteredAt returns the time the review entered its current stage: the
// acted_at of the action that moved it there, or started_at if no action has
// changed the stage yet. Comments and escalations do not reset the clock.
func StageEnteredAt(review *models.ApplicationReview, stageCount int, actions []models.ReviewStageAction) time.Time {
	entered := review.StartedAt
	stage := 0
	for i := range actions {
		next := stageAfter(stage, stageCount, &actions[i])
		if next != stage {
			stage = next
			entered = actions[i].ActedAt
		}
	}
	return entered
}

// ProgressPercent maps the current stage onto 0..100. A single-stage workflow
// reports 0 until it completes.
func ProgressPercent(currentStage, stageCount int) float64 {
	if stageCount <= 1 {
		return 0
	}
	return float64(currentStage) / float64(stageCount-1) * 100
}

// ReplayActions reconstructs (current_stage, status) by replaying a review's
// audit trail from the initial state. The stored fields must always agree with
// the replay result; tests rely on this to catch drift.
func ReplayActions(stageCount int, actions []models.ReviewStageAction) (int, string) {
	stage := 0
	status := models.ReviewStatusInReview
	for i := range actions {
		a := &actions[i]
		switch a.Action {
		case models.ActionApproved:
			if stage >= stageCount-1 {
				status = models.ReviewStatusApproved
			} else {
				stage++
				status = models.ReviewStatusInReview
			}
		case models.ActionRejected:
			status = models.ReviewStatusRejected
		case models.ActionReturned:
			if stage > 0 {
				stage--
			}
			status = models.ReviewStatusInReview
		case models.ActionEscalated:
			status = models.ReviewStatusEscalated
		case models.ActionCommented:
			// no state change
		}
	}
	return stage, status
}

// stageAfter returns the stage index after applying a single action. An
// approval on the last stage completes the review and leaves the stage as is.
func stageAfter(stage, stageCount int, a *models.ReviewStageAction) int {
	switch a.Action {
	case models.ActionApproved:
		if stage < stageCount-1 {
			return stage + 1
		}
	case models.ActionReturned:
		if stage > 0 {
			return stage - 1
		}
	}
	return stage
}
