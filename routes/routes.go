package routes

import (
	"grant-review-api/controllers"
	"grant-review-api/middleware"
	"grant-review-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Grant Review API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Review workflow templates
			workflows := protected.Group("/workflows")
			{
				workflows.GET("", controllers.GetWorkflows)
				workflows.GET("/:id", controllers.GetWorkflow)

				// Only admin can publish new template versions
				workflows.POST("", middleware.RequireRole(models.RoleIDAdmin), controllers.CreateWorkflow)
			}

			// Grant applications, reviews and teams
			applications := protected.Group("/applications")
			{
				applications.GET("", controllers.GetApplications)
				applications.GET("/:id", controllers.GetApplication)
				applications.POST("", controllers.CreateApplication)

				// Review workflow engine
				applications.POST("/:id/review", controllers.StartReview)
				applications.GET("/:id/review", controllers.GetReview)
				applications.POST("/:id/review/action", controllers.SubmitReviewAction)
				applications.GET("/:id/review/history", controllers.GetReviewHistory)
				applications.GET("/:id/review/can-review", controllers.CanReview)
				applications.DELETE("/:id/review", controllers.CancelReview)

				// Team management (per-application authorization inside handlers)
				applications.GET("/:id/team", controllers.GetTeam)
				applications.POST("/:id/team", controllers.AddTeamMember)
				applications.PATCH("/:id/team/:member_id", controllers.UpdateTeamMember)
				applications.DELETE("/:id/team/:member_id", controllers.RemoveTeamMember)
				applications.GET("/:id/team/available-users", controllers.GetAvailableUsers)
			}

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", controllers.GetNotifications)
				notifications.PATCH("/:id/read", controllers.MarkNotificationRead)
			}
		}
	}
}
