package controllers

import (
	"net/http"

	"grant-review-api/services"
	"grant-review-api/utils"

	"github.com/gin-gonic/gin"
)

// StartReview creates a review for the application, bound to the requested
// workflow template or the default one. 409 when an active review exists.
func StartReview(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		WorkflowID *int `json:"workflow_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	review, err := reviewProcessor().StartReview(application.ApplicationID, req.WorkflowID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Review started",
		"review":  review,
	})
}

// GetReview returns the application's current review with derived fields
// (current_stage_name, sla_deadline, is_overdue, progress_percent). The read
// also sweeps overdue auto-escalating stages.
func GetReview(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}

	review, err := reviewProcessor().GetReview(application.ApplicationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"review":  review,
	})
}

// SubmitReviewAction applies one action (approved, rejected, returned,
// commented) against the current review. 403 on authorization failure, 409 on
// terminal state or version conflict.
func SubmitReviewAction(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Action     string  `json:"action" binding:"required"`
		Comments   *string `json:"comments"`
		ActionUUID string  `json:"action_uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	comments := req.Comments
	if comments != nil {
		clean := utils.SanitizeInput(*comments)
		comments = &clean
	}

	review, err := reviewProcessor().SubmitAction(application.ApplicationID, userID, services.ActionInput{
		Action:     req.Action,
		Comments:   comments,
		ActionUUID: req.ActionUUID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Action recorded",
		"review":  review,
	})
}

// GetReviewHistory returns the ordered audit trail for the current review.
func GetReviewHistory(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}

	history, err := reviewProcessor().History(application.ApplicationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": history,
		"total":   len(history),
	})
}

// CanReview is the UI pre-check for graying out review actions.
func CanReview(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	canReview, reason, err := reviewProcessor().CanReview(application.ApplicationID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := gin.H{"can_review": canReview}
	if reason != "" {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

// CancelReview cancels a non-terminal review. Team administrators only; the
// audit trail is retained.
func CancelReview(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := reviewProcessor().CancelReview(application.ApplicationID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Review cancelled",
	})
}
