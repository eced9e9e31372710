package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/quiz-scheduler-api/internal/middleware"
	"github.com/noah-isme/quiz-scheduler-api/internal/service"
)

// Dependencies bundles everything the route table needs.
type Dependencies struct {
	Tokens      *service.TokenService
	Quizzes     *QuizHandler
	Enrollments *EnrollmentHandler
	Attempts    *AttemptHandler
	Reaper      *ReaperHandler
}

// RegisterRoutes mounts the versioned API onto the engine.
func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWT(deps.Tokens))

	educator := middleware.RequireRoles(middleware.RoleEducator, middleware.RoleAdmin)

	quizzes := v1.Group("/quizzes")
	{
		quizzes.GET("", deps.Quizzes.List)
		quizzes.GET("/:id", deps.Quizzes.Get)
		quizzes.POST("", educator, deps.Quizzes.Create)
		quizzes.POST("/:id/publish", educator, deps.Quizzes.Publish)
		quizzes.PUT("/:id/schedule", educator, deps.Quizzes.Schedule)
		quizzes.GET("/:id/export", educator, deps.Quizzes.Export)

		quizzes.GET("/:id/availability", deps.Attempts.Availability)
		quizzes.POST("/:id/attempts", middleware.RequireRoles(middleware.RoleStudent), deps.Attempts.Start)
		quizzes.POST("/:id/attempts/:attemptId/submit", middleware.RequireRoles(middleware.RoleStudent), deps.Attempts.Submit)
	}

	enrollments := v1.Group("/enrollments", educator)
	{
		enrollments.GET("", deps.Enrollments.List)
		enrollments.POST("", deps.Enrollments.Create)
		enrollments.POST("/reassign", deps.Enrollments.Reassign)
	}

	admin := v1.Group("/admin", middleware.RequireRoles(middleware.RoleAdmin))
	{
		admin.POST("/reaper/sweep", deps.Reaper.Sweep)
	}
}
