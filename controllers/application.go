package controllers

import (
	"fmt"
	"net/http"
	"time"

	"grant-review-api/config"
	"grant-review-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetApplications lists live applications. Non-admin callers only see
// applications they are a team member of.
func GetApplications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	query := config.DB.Preload("Owner").Where("grant_applications.delete_at IS NULL")

	roleID, _ := c.Get("roleID")
	if id, isInt := roleID.(int); !isInt || id != models.RoleIDAdmin {
		membership := config.DB.Model(&models.ApplicationTeamMember{}).
			Select("application_id").
			Where("user_id = ? AND delete_at IS NULL", userID)
		query = query.Where("application_id IN (?)", membership)
	}

	var applications []models.GrantApplication
	if err := query.Order("application_id DESC").Find(&applications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch applications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"applications": applications,
		"total":        len(applications),
	})
}

// GetApplication returns one application.
func GetApplication(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"application": application,
	})
}

// CreateApplication creates an application and seeds its team with the
// creator as principal investigator.
func CreateApplication(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	now := time.Now()
	application := models.GrantApplication{
		Title:    req.Title,
		OwnerID:  userID,
		CreateAt: now,
		UpdateAt: now,
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&application).Error; err != nil {
			return err
		}
		application.ApplicationNumber = fmt.Sprintf("GA-%d-%04d", now.Year(), application.ApplicationID)
		if err := tx.Model(&models.GrantApplication{}).
			Where("application_id = ?", application.ApplicationID).
			Update("application_number", application.ApplicationNumber).Error; err != nil {
			return err
		}

		member := models.ApplicationTeamMember{
			ApplicationID: application.ApplicationID,
			UserID:        userID,
			TeamRole:      models.RolePrincipalInvestigator,
			Permissions: models.TeamMemberPermissions{
				CanEdit:   true,
				CanSubmit: true,
			},
			AddedBy:  userID,
			CreateAt: now,
			UpdateAt: now,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create application"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"message":     "Application created",
		"application": application,
	})
}
