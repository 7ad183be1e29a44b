package controllers

import (
	"net/http"
	"strconv"

	"grant-review-api/config"
	"grant-review-api/models"
	"grant-review-api/services"

	"github.com/gin-gonic/gin"
)

// GetWorkflows lists all published review workflow templates.
func GetWorkflows(c *gin.Context) {
	store := services.NewTemplateStore(config.DB)

	var (
		workflows []models.ReviewWorkflow
		err       error
	)
	if c.Query("default") == "true" {
		workflows, err = store.ListDefaults()
	} else {
		workflows, err = store.List()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workflows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"workflows": workflows,
		"total":     len(workflows),
	})
}

// GetWorkflow returns one workflow template with its ordered stages.
func GetWorkflow(c *gin.Context) {
	workflowID, err := strconv.Atoi(c.Param("id"))
	if err != nil || workflowID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid workflow ID"})
		return
	}

	workflow, err := services.NewTemplateStore(config.DB).Get(workflowID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"workflow": workflow,
	})
}

// CreateWorkflow publishes a new workflow template version. Admin only;
// published templates are never mutated in place.
func CreateWorkflow(c *gin.Context) {
	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description *string `json:"description"`
		IsDefault   bool    `json:"is_default"`
		Version     int     `json:"version"`
		Stages      []struct {
			StageOrder   int    `json:"stage_order"`
			StageName    string `json:"stage_name" binding:"required"`
			RequiredRole string `json:"required_role" binding:"required"`
			SLAHours     int    `json:"sla_hours"`
			AutoEscalate bool   `json:"auto_escalate"`
		} `json:"stages" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	workflow := models.ReviewWorkflow{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Version:     req.Version,
		CreatedBy:   userID,
	}
	for _, stage := range req.Stages {
		workflow.Stages = append(workflow.Stages, models.ReviewStage{
			StageOrder:   stage.StageOrder,
			StageName:    stage.StageName,
			RequiredRole: stage.RequiredRole,
			SLAHours:     stage.SLAHours,
			AutoEscalate: stage.AutoEscalate,
		})
	}

	if err := services.NewTemplateStore(config.DB).Publish(&workflow); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  "Workflow published",
		"workflow": workflow,
	})
}
