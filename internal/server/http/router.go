// Package http exposes the contribution log over a JSON API: asset
// ingestion and staging, case-study synthesis, the study library, account
// and preference management.
package http

import (
	"github.com/ericthayer/devlog/internal/models"
	"github.com/ericthayer/devlog/internal/server/auth"
	"github.com/ericthayer/devlog/internal/server/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config, h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", h.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
	}

	protected := api.Group("/")
	protected.Use(auth.Middleware([]byte(cfg.SecretKey)))
	{
		protected.GET("/me", h.Me)
		protected.GET("/studies", h.ListStudies)
		protected.GET("/studies/:id", h.GetStudy)
		protected.GET("/blobs/:token", h.ServeBlob)
	}

	publisher := protected.Group("/")
	publisher.Use(auth.RequireRole(models.Role.CanPublish))
	{
		publisher.POST("/assets", h.UploadAssets)
		publisher.GET("/assets", h.StagedAssets)
		publisher.DELETE("/assets/:id", h.RemoveAsset)
		publisher.DELETE("/assets", h.ClearAssets)

		publisher.POST("/synthesize", h.Synthesize)
		publisher.POST("/cancel", h.CancelPipeline)
		publisher.GET("/progress", h.PipelineProgress)

		publisher.PUT("/studies/:id", h.SaveStudy)
		publisher.POST("/studies/:id/publish", h.PublishStudy)
		publisher.DELETE("/studies/:id", h.DeleteStudy)

		publisher.GET("/preferences", h.GetPreferences)
		publisher.PUT("/preferences", h.PutPreferences)
	}

	admin := protected.Group("/")
	admin.Use(auth.RequireRole(models.Role.CanManageUsers))
	{
		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/role", h.SetUserRole)
		admin.DELETE("/users/:id", h.DeleteUser)
		admin.DELETE("/snapshot", h.WipeLocalState)
	}

	return router
}
