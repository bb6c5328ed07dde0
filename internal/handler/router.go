package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hspatel/fileshare/internal/middleware"
)

type RouterDeps struct {
	Shares          *ShareHandler
	UploadRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	uploadGroup := api.Group("")
	if deps.UploadRateLimit > 0 {
		uploadGroup.Use(middleware.RateLimit(deps.UploadRateLimit))
	}
	uploadGroup.POST("/upload", deps.Shares.Upload)

	api.GET("/download/:file_id", deps.Shares.Download)
	api.GET("/shares/:file_id", deps.Shares.Get)
}
