package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidflow/pipeline/internal/jobstore"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleGetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if !jobIDPattern.MatchString(jobID) {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeValidation, Message: "job_id does not match the required format"},
			NextAction: nextActionFor(jobstore.CodeValidation, ""),
		})
		return
	}

	job, err := s.jobs.Get(jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{
				Error: APIError{Code: "JOB_NOT_FOUND", Message: "job not found"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error: APIError{Code: jobstore.CodeInternal, Message: "failed to load job"},
		})
		return
	}

	nextAction := nextActionFor("", jobID)
	if job.Error != nil {
		nextAction = nextActionFor(job.Error.Code, jobID)
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":               job.JobID,
		"status":               job.Status,
		"progress":             job.Progress,
		"message":              job.Message,
		"started_at":           job.StartedAt,
		"completed_at":         job.CompletedAt,
		"estimated_completion": job.EstimatedCompletion,
		"result":               job.Result,
		"error":                job.Error,
		"next_action":          nextAction,
	})
}

func (s *Server) handleCancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if !jobIDPattern.MatchString(jobID) {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: APIError{Code: jobstore.CodeValidation, Message: "job_id does not match the required format"},
		})
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	ok, err := s.jobs.Cancel(jobID, req.Reason)
	if err != nil {
		if errors.Is(err, jobstore.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{
				Error: APIError{Code: "JOB_NOT_FOUND", Message: "job not found"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error: APIError{Code: jobstore.CodeInternal, Message: "failed to cancel job"},
		})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, errorResponse{
			Error:      APIError{Code: "NOT_CANCELABLE", Message: "job has already reached a terminal state"},
			NextAction: "no action needed, the job already finished",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "status": "cancelled"})
}
