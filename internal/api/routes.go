package api

import (
	"net/http"

	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	assessmentService service.AssessmentService,
	mediaService service.MediaService,
	maxFileBytes int64,
	log *logger.Logger,
) {
	assessmentHandler := NewAssessmentHandler(assessmentService, maxFileBytes, log)
	mediaHandler := NewMediaHandler(mediaService, maxFileBytes, log)
	exerciseHandler := NewExerciseHandler()

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, ok := requireUserID(c)
			if !ok {
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
		})

		// GET /api/v1/exercises
		protected.GET("/exercises", exerciseHandler.ListExercises)

		assessmentGroup := protected.Group("/assessment")
		{
			assessmentGroup.POST("/perform_one", assessmentHandler.PerformOne)
			assessmentGroup.POST("/get_final_result", assessmentHandler.GetFinalResult)
			assessmentGroup.GET("/records", assessmentHandler.GetMyAssessments)
			// Engine internals are operator-only.
			assessmentGroup.GET("/engine/health", RoleMiddleware(domain.RoleAdmin), assessmentHandler.EngineHealth)
		}

		mediaGroup := protected.Group("/media")
		{
			mediaGroup.POST("/upload", mediaHandler.UploadMedia)
			mediaGroup.GET("/getmedia", mediaHandler.GetMedia)
			mediaGroup.DELETE("/deletemedia", mediaHandler.DeleteMedia)
		}
	}
}
