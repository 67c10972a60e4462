package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TechFest-2026/exam-session-service/internal/services"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler  *SessionHandler
	adminHandler    *AdminHandler
	questionHandler *QuestionHandler
	verifier        TokenVerifier
	logger          utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	verifier TokenVerifier,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:  NewSessionHandler(serviceManager.Session(), serviceManager.Violation(), logger),
		adminHandler:    NewAdminHandler(serviceManager.Session(), serviceManager.Export(), logger),
		questionHandler: NewQuestionHandler(serviceManager.QuestionBank(), logger),
		verifier:        verifier,
		logger:          logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-session-service",
		})
	})

	v1 := router.Group("/api/v1")
	{
		// Candidate routes: the session UUID is the only credential.
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.GET("/:id/status", hm.sessionHandler.GetStatus)
			sessions.POST("/:id/answer", hm.sessionHandler.RecordAnswer)
			sessions.POST("/:id/answers/sync", hm.sessionHandler.SyncAnswers)
			sessions.POST("/:id/finalize", hm.sessionHandler.Finalize)
			sessions.POST("/:id/violations", hm.sessionHandler.ReportViolation)
		}

		// Proctor routes
		admin := v1.Group("/admin", AdminMiddleware(hm.verifier, hm.logger))
		{
			admin.GET("/sessions/active", hm.adminHandler.ListActiveSessions)
			admin.GET("/stats", hm.adminHandler.GetStats)
			admin.GET("/results", hm.adminHandler.ListResults)
			admin.GET("/results/export", hm.adminHandler.ExportResults)

			admin.POST("/sessions/:id/force-submit", hm.adminHandler.ForceSubmit)
			admin.POST("/sessions/:id/extend", hm.adminHandler.GrantExtension)
			admin.POST("/sessions/extend-all", hm.adminHandler.GrantExtensionAll)
			admin.POST("/sessions/:id/message", hm.adminHandler.PostMessage)

			admin.POST("/questions", hm.questionHandler.CreateQuestion)
			admin.GET("/questions", hm.questionHandler.ListQuestions)
			admin.GET("/questions/:id", hm.questionHandler.GetQuestion)
			admin.PUT("/questions/:id/active", hm.questionHandler.SetQuestionActive)
			admin.DELETE("/questions/:id", hm.questionHandler.DeleteQuestion)
			admin.POST("/questions/generate", hm.questionHandler.GenerateQuestions)
			admin.POST("/questions/import", hm.adminHandler.ImportQuestions)
		}
	}
}
