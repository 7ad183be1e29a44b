package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"grant-review-api/config"
	"grant-review-api/models"
	"grant-review-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	processorOnce sync.Once
	processor     *services.ActionProcessor
)

// reviewProcessor returns the shared ActionProcessor wired over config.DB.
func reviewProcessor() *services.ActionProcessor {
	processorOnce.Do(func() {
		notifier := services.NewNotificationService(config.DB)
		processor = services.NewActionProcessor(config.DB, notifier)
	})
	return processor
}

// currentUserID pulls the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (int, bool) {
	value, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User context missing"})
		return 0, false
	}
	userID, ok := value.(int)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user context"})
		return 0, false
	}
	return userID, true
}

// applicationFromParam resolves the :id route param to a live application.
func applicationFromParam(c *gin.Context) (*models.GrantApplication, bool) {
	applicationID, err := strconv.Atoi(c.Param("id"))
	if err != nil || applicationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return nil, false
	}

	var application models.GrantApplication
	if err := config.DB.Where("application_id = ? AND delete_at IS NULL", applicationID).
		First(&application).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load application"})
		return nil, false
	}
	return &application, true
}

// respondServiceError maps the engine's error taxonomy onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	var (
		notFound   *services.NotFoundError
		conflict   *services.ConflictError
		denied     *services.PermissionDeniedError
		invalid    *services.InvalidStateError
		validation *services.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		if invalid.Terminal {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
