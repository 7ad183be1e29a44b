package services

import (
	"context"
	"errors"
	"log"
	"time"

	"grant-review-api/models"

	"github.com/google/uuid"
)

// activeLister is the slice of the review store the periodic sweep needs on
// top of reviewSource.
type activeLister interface {
	reviewSource
	ListActive() ([]models.ApplicationReview, error)
}

// EscalationSweeper flips overdue auto-escalating stages to escalated. It runs
// lazily on every review read and optionally on a timer; both paths go through
// the same CAS write as user actions, so a sweep can never race a decision
// into a double transition. Escalation marks the review for priority handling
// only — the stage itself never moves.
type EscalationSweeper struct {
	templates templateSource
	reviews   activeLister
	notifier  reviewNotifier
	now       func() time.Time
}

func NewEscalationSweeper(templates templateSource, reviews activeLister, notifier reviewNotifier) *EscalationSweeper {
	return &EscalationSweeper{
		templates: templates,
		reviews:   reviews,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SweepReview escalates the review if its current stage is overdue and
// configured to auto-escalate. It returns the system-authored audit record
// when an escalation happened and nil otherwise. Sweeping an already-escalated
// or terminal review is a no-op, as is losing the CAS race to a concurrent
// action: the review it raced with has fresher state than the sweep.
func (s *EscalationSweeper) SweepReview(review *models.ApplicationReview, wf *models.ReviewWorkflow, actions []models.ReviewStageAction) (*models.ReviewStageAction, error) {
	if review.Status != models.ReviewStatusInReview && review.Status != models.ReviewStatusPending {
		return nil, nil
	}
	if review.CurrentStage < 0 || review.CurrentStage >= len(wf.Stages) {
		return nil, nil
	}
	stage := &wf.Stages[review.CurrentStage]
	if !stage.AutoEscalate {
		return nil, nil
	}

	now := s.now()
	entered := StageEnteredAt(review, len(wf.Stages), actions)
	if !IsOverdue(DeadlineFor(stage, entered), now, review.Status) {
		return nil, nil
	}

	updated := *review
	updated.Status = models.ReviewStatusEscalated
	action := &models.ReviewStageAction{
		ActionUUID: uuid.NewString(),
		ReviewID:   review.ReviewID,
		StageOrder: review.CurrentStage,
		ReviewerID: models.SystemReviewerID,
		Action:     models.ActionEscalated,
		ActedAt:    now,
	}

	if err := s.reviews.SaveWithAction(&updated, review.RowVersion, action); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return nil, nil
		}
		return nil, err
	}

	*review = updated
	if s.notifier != nil {
		s.notifier.ReviewEscalated(review, wf, stage)
	}
	return action, nil
}

// SweepAll inspects every active review once and returns how many escalated.
func (s *EscalationSweeper) SweepAll() (int, error) {
	reviews, err := s.reviews.ListActive()
	if err != nil {
		return 0, err
	}

	escalated := 0
	for i := range reviews {
		review := &reviews[i]
		wf, err := s.templates.Get(review.WorkflowID)
		if err != nil {
			log.Printf("escalation sweep: workflow lookup for review %d: %v", review.ReviewID, err)
			continue
		}
		actions, err := s.reviews.Actions(review.ReviewID)
		if err != nil {
			log.Printf("escalation sweep: actions lookup for review %d: %v", review.ReviewID, err)
			continue
		}
		action, err := s.SweepReview(review, wf, actions)
		if err != nil {
			log.Printf("escalation sweep: review %d: %v", review.ReviewID, err)
			continue
		}
		if action != nil {
			escalated++
		}
	}
	return escalated, nil
}

// Run sweeps on a fixed interval until the context is cancelled. Started from
// main as a background goroutine.
func (s *EscalationSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepAll(); err != nil {
				log.Printf("escalation sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("escalation sweep: %d review(s) escalated", n)
			}
		}
	}
}
