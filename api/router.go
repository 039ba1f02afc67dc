package api

import (
	"ytqueue/config"
	"ytqueue/job"

	"github.com/gin-gonic/gin"
)

func SetupRouter(mgr *job.Manager, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	r.Use(CORSMiddleware())
	h := NewHandler(mgr, cfg)

	r.GET("/health", h.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/download", h.handleSubmit)
		api.GET("/downloads", h.handleListDownloads)
		api.GET("/downloads/:id", h.handleGetDownload)
		api.GET("/downloads/:id/video", h.handleGetVideo)
	}
	return r
}
