package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidflow/pipeline/internal/jobstore"
	"github.com/vidflow/pipeline/internal/workflowstore"
)

func (s *Server) handleCreateWorkflow(c *gin.Context) {
	id, err := s.workflows.CreateWorkflow()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:      APIError{Code: jobstore.CodeInternal, Message: "failed to create workflow"},
			NextAction: nextActionFor(jobstore.CodeInternal, ""),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow_id": id})
}

func (s *Server) handleGetWorkflow(c *gin.Context) {
	workflowID := c.Param("workflow_id")
	wf, err := s.workflows.Get(workflowID)
	if err != nil {
		if errors.Is(err, workflowstore.ErrWorkflowNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{
				Error:      APIError{Code: jobstore.CodeWorkflowNotFound, Message: "workflow not found"},
				NextAction: nextActionFor(jobstore.CodeWorkflowNotFound, ""),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error: APIError{Code: jobstore.CodeInternal, Message: "failed to load workflow"},
		})
		return
	}
	c.JSON(http.StatusOK, wf)
}
