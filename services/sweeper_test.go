package services

import (
	"testing"
	"time"

	"grant-review-api/models"
)

func TestSweepEscalatesOverdueStage(t *testing.T) {
	m, clock, p := standardSetup()

	started, err := p.StartReview(1, nil, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// 24h SLA on PI Review, 25h elapsed: the next read must sweep.
	clock.Advance(25 * time.Hour)
	detail, err := p.GetReview(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Status != models.ReviewStatusEscalated {
		t.Fatalf("status = %s, want escalated", detail.Status)
	}
	if detail.CurrentStage != 0 {
		t.Fatalf("escalation moved stage to %d", detail.CurrentStage)
	}
	if !detail.IsOverdue {
		t.Fatal("escalated review should still read as overdue")
	}
	// escalation does not restart the stage clock
	if !detail.StageEnteredAt.Equal(ts(0)) {
		t.Fatalf("stage_entered_at = %v, want %v", detail.StageEnteredAt, ts(0))
	}

	actions, _ := m.Actions(started.ReviewID)
	if len(actions) != 1 {
		t.Fatalf("audit records = %d, want 1", len(actions))
	}
	if actions[0].Action != models.ActionEscalated || actions[0].ReviewerID != models.SystemReviewerID {
		t.Fatalf("escalation record = %+v", actions[0])
	}
	if actions[0].StageOrder != 0 {
		t.Fatalf("escalation recorded at stage %d", actions[0].StageOrder)
	}
	assertReplayMatches(t, m, started.ReviewID)
}

func TestSweepIdempotent(t *testing.T) {
	m, clock, p := standardSetup()

	started, err := p.StartReview(1, nil, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(25 * time.Hour)
	if _, err := p.GetReview(1); err != nil {
		t.Fatalf("first get: %v", err)
	}
	clock.Advance(time.Hour)
	detail, err := p.GetReview(1)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if detail.Status != models.ReviewStatusEscalated {
		t.Fatalf("status = %s", detail.Status)
	}
	if got := m.actionCount(started.ReviewID); got != 1 {
		t.Fatalf("repeated sweeps appended audit records: %d", got)
	}
}

func TestSweepBeforeDeadlineIsNoop(t *testing.T) {
	m, clock, p := standardSetup()

	started, err := p.StartReview(1, nil, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(23 * time.Hour)
	detail, err := p.GetReview(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Status != models.ReviewStatusInReview || detail.IsOverdue {
		t.Fatalf("status = %s, overdue = %v", detail.Status, detail.IsOverdue)
	}
	if got := m.actionCount(started.ReviewID); got != 0 {
		t.Fatalf("audit records = %d, want 0", got)
	}
}

func TestSweepSkipsStagesWithoutAutoEscalate(t *testing.T) {
	m, clock, p := standardSetup()

	started, err := p.StartReview(1, nil, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := p.SubmitAction(1, 10, ActionInput{Action: models.ActionApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Office Review (48h SLA, auto_escalate off) is long overdue: the review
	// reads as overdue but never escalates.
	clock.Advance(100 * time.Hour)
	detail, err := p.GetReview(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Status != models.ReviewStatusInReview {
		t.Fatalf("status = %s", detail.Status)
	}
	if !detail.IsOverdue {
		t.Fatal("breached stage should read as overdue")
	}
	if got := m.actionCount(started.ReviewID); got != 1 {
		t.Fatalf("audit records = %d, want only the approval", got)
	}
}

func TestSweepSkipsTerminalReview(t *testing.T) {
	m, clock, p := standardSetup()

	started, err := p.StartReview(1, nil, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := p.SubmitAction(1, 10, ActionInput{Action: models.ActionRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	clock.Advance(48 * time.Hour)
	detail, err := p.GetReview(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Status != models.ReviewStatusRejected || detail.IsOverdue {
		t.Fatalf("status = %s, overdue = %v", detail.Status, detail.IsOverdue)
	}
	if got := m.actionCount(started.ReviewID); got != 1 {
		t.Fatalf("audit records = %d, want only the rejection", got)
	}
}

func TestEscalatedReviewStillActionable(t *testing.T) {
	m, clock, p := standardSetup()

	started, err := p.StartReview(1, nil, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(25 * time.Hour)
	if _, err := p.GetReview(1); err != nil {
		t.Fatalf("get: %v", err)
	}

	// the PI clears the escalation by finally deciding the stage
	detail, err := p.SubmitAction(1, 10, ActionInput{Action: models.ActionApproved})
	if err != nil {
		t.Fatalf("approve after escalation: %v", err)
	}
	if detail.CurrentStage != 1 || detail.Status != models.ReviewStatusInReview {
		t.Fatalf("after approve = (%d, %s)", detail.CurrentStage, detail.Status)
	}
	// stage 1 clock starts at the approval
	if !detail.StageEnteredAt.Equal(ts(25)) {
		t.Fatalf("stage_entered_at = %v, want %v", detail.StageEnteredAt, ts(25))
	}
	assertReplayMatches(t, m, started.ReviewID)
}

func TestSweepLosesRaceIsSilent(t *testing.T) {
	m, clock, p := standardSetup()

	started, err := p.StartReview(1, nil, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(25 * time.Hour)

	// a decision commits between the sweep's read and its write
	m.beforeSave = func(m *memEngine) {
		m.beforeSave = nil
		m.mu.Lock()
		defer m.mu.Unlock()
		m.reviews[started.ReviewID].RowVersion++
	}

	review, err := m.GetByApplication(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	wf, _ := m.Get(review.WorkflowID)
	action, err := p.sweeper.SweepReview(review, wf, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if action != nil {
		t.Fatal("losing sweep reported an escalation")
	}
	if got := m.actionCount(started.ReviewID); got != 0 {
		t.Fatalf("losing sweep appended %d audit record(s)", got)
	}
}

func TestSweepAllCountsEscalations(t *testing.T) {
	m, clock, p := standardSetup()
	m.addMember(2, 10, models.RolePrincipalInvestigator, models.TeamMemberPermissions{})

	if _, err := p.StartReview(1, nil, 10); err != nil {
		t.Fatalf("start app 1: %v", err)
	}
	clock.Advance(20 * time.Hour)
	if _, err := p.StartReview(2, nil, 10); err != nil {
		t.Fatalf("start app 2: %v", err)
	}

	// app 1 is 25h into a 24h SLA, app 2 only 5h
	clock.Advance(5 * time.Hour)
	n, err := p.sweeper.SweepAll()
	if err != nil {
		t.Fatalf("sweep all: %v", err)
	}
	if n != 1 {
		t.Fatalf("escalated = %d, want 1", n)
	}

	first, err := m.GetByApplication(1)
	if err != nil {
		t.Fatalf("get app 1: %v", err)
	}
	if first.Status != models.ReviewStatusEscalated {
		t.Fatalf("app 1 status = %s", first.Status)
	}
	second, err := m.GetByApplication(2)
	if err != nil {
		t.Fatalf("get app 2: %v", err)
	}
	if second.Status != models.ReviewStatusInReview {
		t.Fatalf("app 2 status = %s", second.Status)
	}

	// a second pass finds nothing new
	n, err = p.sweeper.SweepAll()
	if err != nil {
		t.Fatalf("second sweep all: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep escalated %d", n)
	}
}
