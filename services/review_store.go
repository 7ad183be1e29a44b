package services

import (
	"errors"
	"time"

	"grant-review-api/models"

	"gorm.io/gorm"
)

// ReviewStore persists ApplicationReview rows and their append-only audit
// trail. Every state write is conditioned on the row_version read by the
// caller; a mismatch means a concurrent writer won and surfaces ConflictError.
type ReviewStore struct {
	db *gorm.DB
}

func NewReviewStore(db *gorm.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

// Create starts a review for an application. It fails with ConflictError when
// an active (non-terminal, non-cancelled) review already exists; the check and
// the insert share one transaction so two racing starts cannot both succeed.
func (s *ReviewStore) Create(applicationID, workflowID int, now time.Time) (*models.ApplicationReview, error) {
	review := models.ApplicationReview{
		ApplicationID: applicationID,
		WorkflowID:    workflowID,
		CurrentStage:  0,
		Status:        models.ReviewStatusInReview,
		StartedAt:     now,
		RowVersion:    1,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&models.ApplicationReview{}).
			Where("application_id = ? AND status NOT IN ? AND delete_at IS NULL",
				applicationID, []string{models.ReviewStatusApproved, models.ReviewStatusRejected}).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return &ConflictError{Reason: "an active review already exists for this application"}
		}
		return tx.Create(&review).Error
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// Get loads a review by id.
func (s *ReviewStore) Get(reviewID int) (*models.ApplicationReview, error) {
	var review models.ApplicationReview
	err := s.db.Where("review_id = ? AND delete_at IS NULL", reviewID).First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "review", ID: reviewID}
		}
		return nil, err
	}
	return &review, nil
}

// GetByApplication returns the application's most recent review, active or
// terminal. Cancelled reviews are invisible.
func (s *ReviewStore) GetByApplication(applicationID int) (*models.ApplicationReview, error) {
	var review models.ApplicationReview
	err := s.db.Where("application_id = ? AND delete_at IS NULL", applicationID).
		Order("review_id DESC").
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "review"}
		}
		return nil, err
	}
	return &review, nil
}

// Actions returns the review's audit trail ordered by acted_at with the
// insertion sequence as tie-break.
func (s *ReviewStore) Actions(reviewID int) ([]models.ReviewStageAction, error) {
	var actions []models.ReviewStageAction
	err := s.db.Preload("Reviewer").
		Where("review_id = ?", reviewID).
		Order("acted_at ASC, action_id ASC").
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// AppendAction inserts an audit record without touching review state. Used for
// comments, which never mutate the review. A repeated action_uuid is a retry
// and is absorbed silently.
func (s *ReviewStore) AppendAction(action *models.ReviewStageAction) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		applied, err := actionApplied(tx, action.ActionUUID)
		if err != nil || applied {
			return err
		}
		return tx.Create(action).Error
	})
}

// SaveWithAction writes the mutated review and its audit record as one atomic
// unit. The update is a compare-and-swap on row_version: zero rows affected
// means a concurrent writer got there first and the caller must re-read. A
// retry carrying an already-recorded action_uuid is treated as applied.
func (s *ReviewStore) SaveWithAction(review *models.ApplicationReview, expectedVersion int, action *models.ReviewStageAction) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		applied, err := actionApplied(tx, action.ActionUUID)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}

		res := tx.Model(&models.ApplicationReview{}).
			Where("review_id = ? AND row_version = ? AND delete_at IS NULL", review.ReviewID, expectedVersion).
			Updates(map[string]interface{}{
				"current_stage": review.CurrentStage,
				"status":        review.Status,
				"completed_at":  review.CompletedAt,
				"row_version":   expectedVersion + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: "review was modified concurrently"}
		}
		return tx.Create(action).Error
	})
	if err != nil {
		return err
	}
	review.RowVersion = expectedVersion + 1
	return nil
}

// Cancel soft-deletes a non-terminal review through the same CAS discipline.
func (s *ReviewStore) Cancel(review *models.ApplicationReview, expectedVersion int, now time.Time) error {
	res := s.db.Model(&models.ApplicationReview{}).
		Where("review_id = ? AND row_version = ? AND delete_at IS NULL", review.ReviewID, expectedVersion).
		Updates(map[string]interface{}{
			"delete_at":   now,
			"row_version": expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Reason: "review was modified concurrently"}
	}
	return nil
}

// ListActive returns the reviews the periodic escalation sweep inspects.
func (s *ReviewStore) ListActive() ([]models.ApplicationReview, error) {
	var reviews []models.ApplicationReview
	err := s.db.Where("status IN ? AND delete_at IS NULL",
		[]string{models.ReviewStatusPending, models.ReviewStatusInReview}).
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func actionApplied(tx *gorm.DB, actionUUID string) (bool, error) {
	var count int64
	err := tx.Model(&models.ReviewStageAction{}).
		Where("action_uuid = ?", actionUUID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
