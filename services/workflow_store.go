package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"grant-review-api/models"

	"gorm.io/gorm"
)

// TemplateStore reads and publishes ReviewWorkflow templates. Published
// templates are immutable: there is no update path, a change publishes a new
// version and review instances keep the binding they were created with.
type TemplateStore struct {
	db *gorm.DB
}

func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Get loads a workflow with its stages ordered by stage_order.
func (s *TemplateStore) Get(workflowID int) (*models.ReviewWorkflow, error) {
	var wf models.ReviewWorkflow
	err := s.db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("stage_order ASC")
	}).Where("workflow_id = ? AND delete_at IS NULL", workflowID).First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "workflow", ID: workflowID}
		}
		return nil, err
	}
	return &wf, nil
}

// Default returns the default template used when a review is started without
// an explicit workflow_id.
func (s *TemplateStore) Default() (*models.ReviewWorkflow, error) {
	defaults, err := s.ListDefaults()
	if err != nil {
		return nil, err
	}
	if len(defaults) == 0 {
		return nil, &NotFoundError{Entity: "default workflow"}
	}
	return &defaults[0], nil
}

// ListDefaults returns the default templates, most recent version first.
func (s *TemplateStore) ListDefaults() ([]models.ReviewWorkflow, error) {
	var workflows []models.ReviewWorkflow
	err := s.db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("stage_order ASC")
	}).Where("is_default = ? AND delete_at IS NULL", true).
		Order("version DESC, workflow_id DESC").
		Find(&workflows).Error
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

// List returns all live templates with stages.
func (s *TemplateStore) List() ([]models.ReviewWorkflow, error) {
	var workflows []models.ReviewWorkflow
	err := s.db.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("stage_order ASC")
	}).Where("delete_at IS NULL").
		Order("workflow_id ASC").
		Find(&workflows).Error
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

// Publish validates and stores a new template version. Malformed templates are
// rejected here with ValidationError and never reach the engine at runtime.
func (s *TemplateStore) Publish(wf *models.ReviewWorkflow) error {
	if err := ValidateWorkflow(wf); err != nil {
		return err
	}

	now := time.Now()
	wf.CreateAt = now
	if wf.Version == 0 {
		wf.Version = 1
	}
	return s.db.Create(wf).Error
}

// ValidateWorkflow checks the template invariants: at least one stage, stage
// orders forming a contiguous 0-based sequence, positive SLA hours and known
// required roles.
func ValidateWorkflow(wf *models.ReviewWorkflow) error {
	if wf.Name == "" {
		return &ValidationError{Reason: "workflow name is required"}
	}
	if len(wf.Stages) == 0 {
		return &ValidationError{Reason: "workflow must have at least one stage"}
	}

	stages := make([]models.ReviewStage, len(wf.Stages))
	copy(stages, wf.Stages)
	sort.Slice(stages, func(i, j int) bool {
		return stages[i].StageOrder < stages[j].StageOrder
	})

	for i := range stages {
		stage := &stages[i]
		if stage.StageOrder != i {
			return &ValidationError{
				Reason: fmt.Sprintf("stage orders must be contiguous starting at 0, got %d at position %d", stage.StageOrder, i),
			}
		}
		if stage.StageName == "" {
			return &ValidationError{Reason: fmt.Sprintf("stage %d has no name", i)}
		}
		if stage.SLAHours <= 0 {
			return &ValidationError{Reason: fmt.Sprintf("stage %d sla_hours must be positive", i)}
		}
		if !models.ValidTeamRole(stage.RequiredRole) {
			return &ValidationError{Reason: fmt.Sprintf("stage %d has unknown role %q", i, stage.RequiredRole)}
		}
	}
	return nil
}
