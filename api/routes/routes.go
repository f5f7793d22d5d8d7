package routes

import (
    "github.com/gin-gonic/gin"

    "github.com/PrescottClub/aurawell-rag/api/handlers"
    "github.com/PrescottClub/aurawell-rag/api/middleware"
)

// SetupRoutes 注册全部路由
func SetupRoutes(router *gin.Engine, h *handlers.Handlers) {
    router.Use(middleware.CORS())

    v1 := router.Group("/api/v1")
    {
        files := v1.Group("/files")
        {
            files.POST("/upload", h.File.UploadFile)
            files.POST("/batch-ingest", h.File.BatchIngest)
            files.GET("", h.File.ListFiles)
            files.GET("/status/:filename", h.File.GetFileStatus)
            files.DELETE("/:filename", h.File.DeleteFile)
        }

        v1.GET("/tasks/:taskId", h.File.GetTaskStatus)
        v1.POST("/search", h.Search.Search)
    }
}
