package handlers

import (
    "github.com/PrescottClub/aurawell-rag/internal/service/ingest"
    "github.com/PrescottClub/aurawell-rag/internal/service/retrieval"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
    "github.com/PrescottClub/aurawell-rag/pkg/queue"
)

// Handlers 聚合全部 API 处理器
type Handlers struct {
    File   *FileHandler
    Search *SearchHandler
}

func NewHandlers(ingestSvc *ingest.Service, retrievalSvc *retrieval.Service, q queue.Queue, log logger.Logger) *Handlers {
    return &Handlers{
        File:   NewFileHandler(ingestSvc.Storage(), ingestSvc.Index(), q, log),
        Search: NewSearchHandler(retrievalSvc, log),
    }
}
