package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"grant-review-api/config"
	"grant-review-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// teamAdminAllowed reports whether the actor may manage the application's
// team: global admins always, otherwise a live administrator membership on
// that application.
func teamAdminAllowed(c *gin.Context, applicationID int) (bool, error) {
	if roleID, exists := c.Get("roleID"); exists {
		if id, ok := roleID.(int); ok && id == models.RoleIDAdmin {
			return true, nil
		}
	}

	userID, ok := currentUserID(c)
	if !ok {
		return false, errors.New("missing user context")
	}

	var member models.ApplicationTeamMember
	err := config.DB.Where("application_id = ? AND user_id = ? AND delete_at IS NULL", applicationID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.TeamRole == models.RoleAdministrator, nil
}

func requireTeamAdmin(c *gin.Context, applicationID int) bool {
	allowed, err := teamAdminAllowed(c, applicationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check permissions"})
		return false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "Administrative permission on this application is required"})
		return false
	}
	return true
}

// GetTeam lists the application's live team members.
func GetTeam(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}

	var members []models.ApplicationTeamMember
	if err := config.DB.Preload("User").
		Where("application_id = ? AND delete_at IS NULL", application.ApplicationID).
		Order("member_id ASC").
		Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch team"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"team":    members,
		"total":   len(members),
	})
}

type teamMemberRequest struct {
	UserID      int     `json:"user_id" binding:"required"`
	Role        string  `json:"role" binding:"required"`
	Permissions *struct {
		CanEdit    bool    `json:"can_edit"`
		CanApprove bool    `json:"can_approve"`
		CanSubmit  bool    `json:"can_submit"`
		Sections   *string `json:"sections"`
	} `json:"permissions"`
}

// AddTeamMember adds a user to the application team. A user holds at most one
// live membership per application.
func AddTeamMember(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}
	if !requireTeamAdmin(c, application.ApplicationID) {
		return
	}

	var req teamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !models.ValidTeamRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown team role"})
		return
	}

	var user models.User
	if err := config.DB.Where("user_id = ? AND delete_at IS NULL", req.UserID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var existing int64
	if err := config.DB.Model(&models.ApplicationTeamMember{}).
		Where("application_id = ? AND user_id = ? AND delete_at IS NULL", application.ApplicationID, req.UserID).
		Count(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a team member"})
		return
	}

	actorID, ok := currentUserID(c)
	if !ok {
		return
	}

	now := time.Now()
	member := models.ApplicationTeamMember{
		ApplicationID: application.ApplicationID,
		UserID:        req.UserID,
		TeamRole:      req.Role,
		AddedBy:       actorID,
		CreateAt:      now,
		UpdateAt:      now,
	}
	if req.Permissions != nil {
		member.Permissions = models.TeamMemberPermissions{
			CanEdit:    req.Permissions.CanEdit,
			CanApprove: req.Permissions.CanApprove,
			CanSubmit:  req.Permissions.CanSubmit,
			Sections:   req.Permissions.Sections,
		}
	}

	if err := config.DB.Create(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add team member"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Team member added",
		"member":  member,
	})
}

// UpdateTeamMember patches a member's role and/or permission overrides.
func UpdateTeamMember(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}
	if !requireTeamAdmin(c, application.ApplicationID) {
		return
	}

	memberID, err := strconv.Atoi(c.Param("member_id"))
	if err != nil || memberID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	var member models.ApplicationTeamMember
	if err := config.DB.Where("member_id = ? AND application_id = ? AND delete_at IS NULL",
		memberID, application.ApplicationID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Team member not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load team member"})
		return
	}

	var req struct {
		Role        *string `json:"role"`
		Permissions *struct {
			CanEdit    *bool   `json:"can_edit"`
			CanApprove *bool   `json:"can_approve"`
			CanSubmit  *bool   `json:"can_submit"`
			Sections   *string `json:"sections"`
		} `json:"permissions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Role != nil {
		if !models.ValidTeamRole(*req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown team role"})
			return
		}
		member.TeamRole = *req.Role
	}
	if req.Permissions != nil {
		if req.Permissions.CanEdit != nil {
			member.Permissions.CanEdit = *req.Permissions.CanEdit
		}
		if req.Permissions.CanApprove != nil {
			member.Permissions.CanApprove = *req.Permissions.CanApprove
		}
		if req.Permissions.CanSubmit != nil {
			member.Permissions.CanSubmit = *req.Permissions.CanSubmit
		}
		if req.Permissions.Sections != nil {
			member.Permissions.Sections = req.Permissions.Sections
		}
	}
	member.UpdateAt = time.Now()

	if err := config.DB.Save(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update team member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Team member updated",
		"member":  member,
	})
}

// RemoveTeamMember soft-deletes a membership. In-flight review actions by the
// removed user fail their next authorization check.
func RemoveTeamMember(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}
	if !requireTeamAdmin(c, application.ApplicationID) {
		return
	}

	memberID, err := strconv.Atoi(c.Param("member_id"))
	if err != nil || memberID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	now := time.Now()
	res := config.DB.Model(&models.ApplicationTeamMember{}).
		Where("member_id = ? AND application_id = ? AND delete_at IS NULL", memberID, application.ApplicationID).
		Updates(map[string]interface{}{
			"delete_at": now,
			"update_at": now,
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove team member"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Team member not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Team member removed",
	})
}

// GetAvailableUsers lists users not yet on the application team.
func GetAvailableUsers(c *gin.Context) {
	application, ok := applicationFromParam(c)
	if !ok {
		return
	}

	var users []models.User
	subquery := config.DB.Model(&models.ApplicationTeamMember{}).
		Select("user_id").
		Where("application_id = ? AND delete_at IS NULL", application.ApplicationID)
	if err := config.DB.Where("delete_at IS NULL AND user_id NOT IN (?)", subquery).
		Order("user_fname ASC, user_lname ASC").
		Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"users":   users,
		"total":   len(users),
	})
}
