package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autosint/engine/pkg/relstore"
)

type createInvestigationRequest struct {
	Prompt                string  `json:"prompt" binding:"required"`
	ParentInvestigationID *string `json:"parent_investigation_id"`
}

func (s *Server) handleCreateInvestigation(c *gin.Context) {
	var req createInvestigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.engine.StartInvestigation(c.Request.Context(), req.Prompt, req.ParentInvestigationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": relstore.StatusPending})
}

func (s *Server) handleGetInvestigation(c *gin.Context) {
	inv, err := s.rel.GetInvestigation(c.Request.Context(), c.Param("id"))
	if errors.Is(err, relstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "investigation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	assessments, err := s.rel.ListAssessmentsForInvestigation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessments": assessments})
}

func (s *Server) handleResumeInvestigation(c *gin.Context) {
	if err := s.engine.ResumeInvestigation(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "resuming"})
}
