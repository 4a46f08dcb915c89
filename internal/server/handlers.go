package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"opsvoice/internal/domain"
)

type ingestRequest struct {
	Title     string `json:"title"`
	Markdown  string `json:"markdown"`
	SetActive bool   `json:"setActive"`
}

type ingestResponse struct {
	DocID   string `json:"docId"`
	Version int    `json:"version"`
	Count   int    `json:"count"`
}

func (s *Server) handleIngest(c *gin.Context) {
	if s.cfg.AdminToken != "" && c.GetHeader("X-Admin-Token") != s.cfg.AdminToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.cfg.Ingestor.Ingest(c.Request.Context(), req.Title, req.Markdown, req.SetActive)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingestResponse{
		DocID:   res.DocID.String(),
		Version: res.Version,
		Count:   res.ChunkCount,
	})
}

type snippetResponse struct {
	Ref        string  `json:"ref"`
	Heading    string  `json:"heading"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"`
}

type searchResponse struct {
	OK       bool              `json:"ok"`
	Snippets []snippetResponse `json:"snippets"`
	Context  string            `json:"context"`
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	k, _ := strconv.Atoi(c.DefaultQuery("k", "0"))
	minSim, _ := strconv.ParseFloat(c.DefaultQuery("min_sim", "0"), 64)

	res, err := s.cfg.Retriever.Search(c.Request.Context(), query, k, minSim)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := searchResponse{OK: true, Snippets: []snippetResponse{}, Context: res.Context}
	for _, sn := range res.Snippets {
		out.Snippets = append(out.Snippets, snippetResponse(sn))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.cfg.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		ve *domain.ValidationError
		pe *domain.ProviderError
		se *domain.StoreError
		te *domain.TimeoutError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg})
	case errors.As(err, &te):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "upstream timeout"})
	case errors.As(err, &pe):
		c.JSON(http.StatusBadGateway, gin.H{"error": "embedding provider failure"})
	case errors.As(err, &se):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
	s.log.Error("request failed", "path", c.FullPath(), "error", err)
}
