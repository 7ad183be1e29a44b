package services

import (
	"testing"
	"time"

	"grant-review-api/models"
)

func ts(hours int) time.Time {
	return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC).Add(time.Duration(hours) * time.Hour)
}

func TestDeadlineFor(t *testing.T) {
	stage := &models.ReviewStage{SLAHours: 24}
	got := DeadlineFor(stage, ts(0))
	want := ts(24)
	if !got.Equal(want) {
		t.Fatalf("deadline = %v, want %v", got, want)
	}
}

func TestIsOverdue(t *testing.T) {
	deadline := ts(24)
	tests := []struct {
		name   string
		now    time.Time
		status string
		want   bool
	}{
		{"before deadline", ts(23), models.ReviewStatusInReview, false},
		{"at deadline", ts(24), models.ReviewStatusInReview, false},
		{"past deadline", ts(25), models.ReviewStatusInReview, true},
		{"past deadline escalated", ts(25), models.ReviewStatusEscalated, true},
		{"terminal approved", ts(25), models.ReviewStatusApproved, false},
		{"terminal rejected", ts(25), models.ReviewStatusRejected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOverdue(deadline, tt.now, tt.status); got != tt.want {
				t.Fatalf("IsOverdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		stage, count int
		want         float64
	}{
		{0, 1, 0},
		{0, 2, 0},
		{1, 2, 100},
		{1, 3, 50},
		{2, 5, 50},
	}
	for _, tt := range tests {
		if got := ProgressPercent(tt.stage, tt.count); got != tt.want {
			t.Errorf("ProgressPercent(%d, %d) = %v, want %v", tt.stage, tt.count, got, tt.want)
		}
	}
}

func TestStageEnteredAt(t *testing.T) {
	review := &models.ApplicationReview{StartedAt: ts(0)}

	t.Run("no actions uses started_at", func(t *testing.T) {
		got := StageEnteredAt(review, 3, nil)
		if !got.Equal(ts(0)) {
			t.Fatalf("entered = %v, want %v", got, ts(0))
		}
	})

	t.Run("comments and escalations do not reset the clock", func(t *testing.T) {
		actions := []models.ReviewStageAction{
			{Action: models.ActionCommented, ActedAt: ts(1)},
			{Action: models.ActionEscalated, ActedAt: ts(2)},
		}
		got := StageEnteredAt(review, 3, actions)
		if !got.Equal(ts(0)) {
			t.Fatalf("entered = %v, want %v", got, ts(0))
		}
	})

	t.Run("approval moves the clock to the transition", func(t *testing.T) {
		actions := []models.ReviewStageAction{
			{Action: models.ActionApproved, ActedAt: ts(4)},
		}
		got := StageEnteredAt(review, 3, actions)
		if !got.Equal(ts(4)) {
			t.Fatalf("entered = %v, want %v", got, ts(4))
		}
	})

	t.Run("return restarts the clock from the return", func(t *testing.T) {
		actions := []models.ReviewStageAction{
			{Action: models.ActionApproved, ActedAt: ts(4)},
			{Action: models.ActionReturned, ActedAt: ts(10)},
		}
		got := StageEnteredAt(review, 3, actions)
		if !got.Equal(ts(10)) {
			t.Fatalf("entered = %v, want %v", got, ts(10))
		}
	})

	t.Run("final approval leaves the stage in place", func(t *testing.T) {
		actions := []models.ReviewStageAction{
			{Action: models.ActionApproved, ActedAt: ts(4)},
			{Action: models.ActionApproved, ActedAt: ts(8)},
			{Action: models.ActionApproved, ActedAt: ts(12)},
		}
		// three-stage workflow: stage 2 entered at ts(8), the last approval
		// completes the review without moving the stage
		got := StageEnteredAt(review, 3, actions)
		if !got.Equal(ts(8)) {
			t.Fatalf("entered = %v, want %v", got, ts(8))
		}
	})
}

func TestReplayActions(t *testing.T) {
	tests := []struct {
		name       string
		stageCount int
		actions    []string
		wantStage  int
		wantStatus string
	}{
		{"empty", 2, nil, 0, models.ReviewStatusInReview},
		{"single approve", 2, []string{"approved"}, 1, models.ReviewStatusInReview},
		{"approve to terminal", 2, []string{"approved", "approved"}, 1, models.ReviewStatusApproved},
		{"single stage approve", 1, []string{"approved"}, 0, models.ReviewStatusApproved},
		{"reject keeps stage", 3, []string{"approved", "rejected"}, 1, models.ReviewStatusRejected},
		{"return floors at zero", 2, []string{"returned", "returned"}, 0, models.ReviewStatusInReview},
		{"approve then return", 2, []string{"approved", "returned"}, 0, models.ReviewStatusInReview},
		{"comments are inert", 2, []string{"commented", "commented"}, 0, models.ReviewStatusInReview},
		{"escalation flags without moving", 2, []string{"escalated"}, 0, models.ReviewStatusEscalated},
		{"approve clears escalation", 2, []string{"escalated", "approved"}, 1, models.ReviewStatusInReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := make([]models.ReviewStageAction, len(tt.actions))
			for i, a := range tt.actions {
				actions[i] = models.ReviewStageAction{Action: a, ActedAt: ts(i)}
			}
			stage, status := ReplayActions(tt.stageCount, actions)
			if stage != tt.wantStage || status != tt.wantStatus {
				t.Fatalf("replay = (%d, %s), want (%d, %s)", stage, status, tt.wantStage, tt.wantStatus)
			}
		})
	}
}
