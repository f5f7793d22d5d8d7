package handlers

import (
    "net/http"

    "github.com/gin-gonic/gin"

    "github.com/PrescottClub/aurawell-rag/internal/service/retrieval"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

const (
    defaultTopK = 5
    maxTopK     = 50
)

// SearchHandler 双通道语义检索
type SearchHandler struct {
    service *retrieval.Service
    logger  logger.Logger
}

// SearchRequest 检索请求
type SearchRequest struct {
    Query string `json:"query" binding:"required"`
    TopK  int    `json:"top_k"`
}

func NewSearchHandler(service *retrieval.Service, log logger.Logger) *SearchHandler {
    return &SearchHandler{service: service, logger: log}
}

// Search 对知识库执行中英双通道检索
func (h *SearchHandler) Search(c *gin.Context) {
    var req SearchRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        h.logger.Error("invalid search request", logger.Error(err))
        c.JSON(http.StatusBadRequest, ErrorResponse{
            Message: "Query is required",
            Error:   err.Error(),
        })
        return
    }

    if req.TopK <= 0 {
        req.TopK = defaultTopK
    }
    if req.TopK > maxTopK {
        req.TopK = maxTopK
    }

    hits, err := h.service.RetrieveTopK(c.Request.Context(), req.Query, req.TopK)
    if err != nil {
        h.logger.Error("search failed",
            logger.String("query", req.Query),
            logger.Error(err),
        )
        c.JSON(http.StatusInternalServerError, ErrorResponse{
            Message: "Search failed",
            Error:   err.Error(),
        })
        return
    }

    c.JSON(http.StatusOK, gin.H{
        "query":   req.Query,
        "count":   len(hits),
        "results": hits,
    })
}
