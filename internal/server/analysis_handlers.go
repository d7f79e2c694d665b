package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidflow/pipeline/internal/enhancer"
	"github.com/vidflow/pipeline/internal/jobstore"
	"github.com/vidflow/pipeline/internal/workflowstore"
)

// analysisRequest is the shared body shape for the four immediate
// analysis endpoints: an optional text override, otherwise the handler
// falls back to enhanced_text then raw_text from the workflow record.
type analysisRequest struct {
	WorkflowID string `json:"workflow_id"`
	Text       string `json:"text"`
}

// runAnalysis implements the shared skeleton for the four immediate
// (non-job) analysis endpoints: bind the request, start the named step
// (per the resolved open question, these manage step status the same
// way job-based steps do rather than just overwriting a result field),
// resolve its input text, invoke the enhancer synchronously, and
// complete or fail the step before responding. build projects the
// enhancer's full result into the step-specific payload both recorded
// in the workflow and returned to the caller.
func (s *Server) runAnalysis(c *gin.Context, step workflowstore.StepName, build func(*enhancer.Result) (*workflowstore.StepResult, gin.H)) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkflowID == "" {
		respondValidation(c, "workflow_id is required")
		return
	}

	if err := s.workflows.StartStep(req.WorkflowID, step, false); err != nil {
		respondStartStepError(c, err)
		return
	}

	wf, err := s.workflows.Get(req.WorkflowID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: APIError{Code: jobstore.CodeInternal, Message: "failed to load workflow"}})
		return
	}

	text, err := analysisText(wf, req.Text)
	if err != nil {
		_ = s.workflows.FailRunningStep(req.WorkflowID, step, jobstore.CodeNoTextToEnhance, err.Error())
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeNoTextToEnhance, Message: err.Error()},
			NextAction: "provide text or complete transcribe-audio/enhance-transcription first",
		})
		return
	}

	if s.enhancer == nil {
		_ = s.workflows.FailRunningStep(req.WorkflowID, step, jobstore.CodeInternal, "no enhancer backend is configured")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: APIError{Code: jobstore.CodeInternal, Message: "no enhancer backend is configured"}})
		return
	}

	out, err := s.enhancer.Enhance(c.Request.Context(), text)
	if err != nil {
		jobErr := enhanceJobError(c.Request.Context(), err)
		_ = s.workflows.FailRunningStep(req.WorkflowID, step, jobErr.Code, jobErr.Message)
		c.JSON(httpStatusFor(jobErr.Code), errorResponse{
			Error:      APIError{Code: jobErr.Code, Message: jobErr.Message},
			NextAction: nextActionFor(jobErr.Code, ""),
		})
		return
	}

	stepResult, body := build(out)
	if err := s.workflows.CompleteStep(req.WorkflowID, step, stepResult); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: APIError{Code: jobstore.CodeInternal, Message: "failed to record step result"}})
		return
	}
	body["workflow_id"] = req.WorkflowID
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleSummarizeContent(c *gin.Context) {
	s.runAnalysis(c, workflowstore.StepSummarizeContent, func(out *enhancer.Result) (*workflowstore.StepResult, gin.H) {
		result := &workflowstore.SummarizeResult{Summary: out.Summary}
		return &workflowstore.StepResult{Summarize: result}, gin.H{"summary": result.Summary}
	})
}

func (s *Server) handleExtractKeyPoints(c *gin.Context) {
	s.runAnalysis(c, workflowstore.StepExtractKeyPoints, func(out *enhancer.Result) (*workflowstore.StepResult, gin.H) {
		result := &workflowstore.KeyPointsResult{KeyPoints: out.KeyPoints}
		return &workflowstore.StepResult{KeyPoints: result}, gin.H{"key_points": result.KeyPoints}
	})
}

func (s *Server) handleAnalyzeSentiment(c *gin.Context) {
	s.runAnalysis(c, workflowstore.StepAnalyzeSentiment, func(out *enhancer.Result) (*workflowstore.StepResult, gin.H) {
		// The enhancer reports a single sentiment label, not a score; a
		// label it was confident enough to commit to counts as 1.0.
		result := &workflowstore.SentimentResult{Sentiment: out.Sentiment, Confidence: 1.0}
		return &workflowstore.StepResult{Sentiment: result}, gin.H{"sentiment": result.Sentiment, "confidence": result.Confidence}
	})
}

func (s *Server) handleIdentifyTopics(c *gin.Context) {
	s.runAnalysis(c, workflowstore.StepIdentifyTopics, func(out *enhancer.Result) (*workflowstore.StepResult, gin.H) {
		result := &workflowstore.TopicsResult{Topics: out.Topics}
		return &workflowstore.StepResult{Topics: result}, gin.H{"topics": result.Topics}
	})
}
