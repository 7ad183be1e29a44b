package services

import (
	"sort"
	"sync"
	"time"

	"grant-review-api/models"
)

// memEngine is an in-memory stand-in for the GORM stores, honoring the same
// contracts: one active review per application, version CAS on writes, and
// action_uuid dedup on appends. beforeSave runs inside SaveWithAction before
// the version check so tests can inject concurrent writers.
type memEngine struct {
	mu           sync.Mutex
	workflows    map[int]*models.ReviewWorkflow
	defaultWF    int
	members      map[int]map[int]*models.ApplicationTeamMember
	reviews      map[int]*models.ApplicationReview
	actions      []models.ReviewStageAction
	nextReviewID int
	nextActionID int
	beforeSave   func(m *memEngine)
}

func newMemEngine() *memEngine {
	return &memEngine{
		workflows:    make(map[int]*models.ReviewWorkflow),
		members:      make(map[int]map[int]*models.ApplicationTeamMember),
		reviews:      make(map[int]*models.ApplicationReview),
		nextReviewID: 1,
		nextActionID: 1,
	}
}

func (m *memEngine) addWorkflow(wf *models.ReviewWorkflow, isDefault bool) {
	m.workflows[wf.WorkflowID] = wf
	if isDefault {
		m.defaultWF = wf.WorkflowID
	}
}

func (m *memEngine) addMember(applicationID, userID int, role string, perms models.TeamMemberPermissions) {
	if m.members[applicationID] == nil {
		m.members[applicationID] = make(map[int]*models.ApplicationTeamMember)
	}
	m.members[applicationID][userID] = &models.ApplicationTeamMember{
		MemberID:      userID,
		ApplicationID: applicationID,
		UserID:        userID,
		TeamRole:      role,
		Permissions:   perms,
	}
}

func (m *memEngine) Get(workflowID int) (*models.ReviewWorkflow, error) {
	wf, ok := m.workflows[workflowID]
	if !ok {
		return nil, &NotFoundError{Entity: "workflow", ID: workflowID}
	}
	return wf, nil
}

func (m *memEngine) Default() (*models.ReviewWorkflow, error) {
	if m.defaultWF == 0 {
		return nil, &NotFoundError{Entity: "default workflow"}
	}
	return m.workflows[m.defaultWF], nil
}

func (m *memEngine) MemberOf(applicationID, userID int) (*models.ApplicationTeamMember, error) {
	member, ok := m.members[applicationID][userID]
	if !ok || member.DeleteAt != nil {
		return nil, &NotFoundError{Entity: "team member"}
	}
	return member, nil
}

func (m *memEngine) Create(applicationID, workflowID int, now time.Time) (*models.ApplicationReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.reviews {
		if existing.ApplicationID == applicationID && existing.IsActive() {
			return nil, &ConflictError{Reason: "an active review already exists for this application"}
		}
	}

	review := &models.ApplicationReview{
		ReviewID:      m.nextReviewID,
		ApplicationID: applicationID,
		WorkflowID:    workflowID,
		CurrentStage:  0,
		Status:        models.ReviewStatusInReview,
		StartedAt:     now,
		RowVersion:    1,
	}
	m.nextReviewID++
	m.reviews[review.ReviewID] = review

	out := *review
	return &out, nil
}

func (m *memEngine) GetByApplication(applicationID int) (*models.ApplicationReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.ApplicationReview
	for _, review := range m.reviews {
		if review.ApplicationID != applicationID || review.DeleteAt != nil {
			continue
		}
		if latest == nil || review.ReviewID > latest.ReviewID {
			latest = review
		}
	}
	if latest == nil {
		return nil, &NotFoundError{Entity: "review"}
	}
	out := *latest
	return &out, nil
}

func (m *memEngine) Actions(reviewID int) ([]models.ReviewStageAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ReviewStageAction
	for _, action := range m.actions {
		if action.ReviewID == reviewID {
			out = append(out, action)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ActedAt.Equal(out[j].ActedAt) {
			return out[i].ActedAt.Before(out[j].ActedAt)
		}
		return out[i].ActionID < out[j].ActionID
	})
	return out, nil
}

func (m *memEngine) AppendAction(action *models.ReviewStageAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(action)
	return nil
}

func (m *memEngine) SaveWithAction(review *models.ApplicationReview, expectedVersion int, action *models.ReviewStageAction) error {
	if m.beforeSave != nil {
		m.beforeSave(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.actionAppliedLocked(action.ActionUUID) {
		return nil
	}

	stored, ok := m.reviews[review.ReviewID]
	if !ok || stored.DeleteAt != nil || stored.RowVersion != expectedVersion {
		return &ConflictError{Reason: "review was modified concurrently"}
	}

	stored.CurrentStage = review.CurrentStage
	stored.Status = review.Status
	stored.CompletedAt = review.CompletedAt
	stored.RowVersion = expectedVersion + 1
	review.RowVersion = stored.RowVersion
	m.appendLocked(action)
	return nil
}

func (m *memEngine) Cancel(review *models.ApplicationReview, expectedVersion int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.reviews[review.ReviewID]
	if !ok || stored.DeleteAt != nil || stored.RowVersion != expectedVersion {
		return &ConflictError{Reason: "review was modified concurrently"}
	}
	deleted := now
	stored.DeleteAt = &deleted
	stored.RowVersion = expectedVersion + 1
	return nil
}

func (m *memEngine) ListActive() ([]models.ApplicationReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ApplicationReview
	for _, review := range m.reviews {
		if review.DeleteAt != nil {
			continue
		}
		if review.Status == models.ReviewStatusInReview || review.Status == models.ReviewStatusPending {
			out = append(out, *review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewID < out[j].ReviewID })
	return out, nil
}

func (m *memEngine) appendLocked(action *models.ReviewStageAction) {
	if m.actionAppliedLocked(action.ActionUUID) {
		return
	}
	action.ActionID = m.nextActionID
	m.nextActionID++
	m.actions = append(m.actions, *action)
}

func (m *memEngine) actionAppliedLocked(actionUUID string) bool {
	for _, existing := range m.actions {
		if existing.ActionUUID == actionUUID {
			return true
		}
	}
	return false
}

func (m *memEngine) actionCount(reviewID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, action := range m.actions {
		if action.ReviewID == reviewID {
			count++
		}
	}
	return count
}

func (m *memEngine) stored(reviewID int) models.ApplicationReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reviews[reviewID]
}

// testClock is a manually advanced clock shared by processor and sweeper.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestProcessor wires a processor and sweeper over the fake stores with a
// controllable clock and no notifier.
func newTestProcessor(m *memEngine, clock *testClock) *ActionProcessor {
	sweeper := NewEscalationSweeper(m, m, nil)
	sweeper.now = clock.Now
	return &ActionProcessor{
		templates: m,
		members:   m,
		reviews:   m,
		sweeper:   sweeper,
		now:       clock.Now,
	}
}
