package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vidflow/pipeline/internal/artifact"
	"github.com/vidflow/pipeline/internal/jobstore"
	"github.com/vidflow/pipeline/internal/workflowstore"
)

// respondValidation writes a 400 VALIDATION_ERROR body. Used for bad
// request bodies, before any workflow/step/job state is touched.
func respondValidation(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Error:      APIError{Code: jobstore.CodeValidation, Message: message},
		NextAction: nextActionFor(jobstore.CodeValidation, ""),
	})
}

// respondStartStepError maps a workflowstore.StartStep error to the
// correct HTTP status: 404 for an unknown workflow, 409 for a step
// already running, 400 for an unsatisfied dependency, 500 otherwise.
// Reports true if it wrote a response (caller should stop).
func respondStartStepError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, workflowstore.ErrWorkflowNotFound):
		c.JSON(http.StatusNotFound, errorResponse{
			Error:      APIError{Code: jobstore.CodeWorkflowNotFound, Message: "workflow not found"},
			NextAction: nextActionFor(jobstore.CodeWorkflowNotFound, ""),
		})
	case errors.Is(err, workflowstore.ErrStepPrecondition):
		status, resp := stepPreconditionResponse(err)
		c.JSON(status, resp)
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error: APIError{Code: jobstore.CodeInternal, Message: "failed to start step"},
		})
	}
	return true
}

// classifyArtifactErr turns an artifact.Store error into a job error with
// the taxonomy's retry semantics: source errors are transient/retryable,
// cancellation and cap violations are not.
func classifyArtifactErr(err error) *jobstore.JobError {
	switch {
	case errors.Is(err, artifact.ErrCancelled):
		return &jobstore.JobError{Code: jobstore.CodeCancelled, Message: err.Error(), Retryable: false}
	case errors.Is(err, artifact.ErrSourceTooLarge):
		return &jobstore.JobError{Code: jobstore.CodeSourceTooLarge, Message: err.Error(), Retryable: false}
	case errors.Is(err, artifact.ErrSourceUnreachable):
		return &jobstore.JobError{Code: jobstore.CodeSourceUnreachable, Message: err.Error(), Retryable: true, RetryAfterMS: 60000}
	case errors.Is(err, artifact.ErrNotFound):
		return &jobstore.JobError{Code: jobstore.CodeAudioFileNotFound, Message: err.Error(), Retryable: false}
	default:
		return &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error(), Retryable: true, RetryAfterMS: 60000}
	}
}

// looksLikeURL reports whether source should be fetched over the network
// rather than copied from the local filesystem.
func looksLikeURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// analysisText resolves the input text for an immediate analysis
// endpoint: an explicit request override, else enhance_transcription's
// enhanced_text, else transcribe_audio's raw_text.
func analysisText(wf *workflowstore.Workflow, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	if step, ok := wf.Steps[workflowstore.StepEnhanceTranscription]; ok && step.Status == workflowstore.StepCompleted &&
		step.Result != nil && step.Result.Enhance != nil && strings.TrimSpace(step.Result.Enhance.EnhancedText) != "" {
		return step.Result.Enhance.EnhancedText, nil
	}
	if step, ok := wf.Steps[workflowstore.StepTranscribeAudio]; ok && step.Status == workflowstore.StepCompleted &&
		step.Result != nil && step.Result.Transcribe != nil && strings.TrimSpace(step.Result.Transcribe.RawText) != "" {
		return step.Result.Transcribe.RawText, nil
	}
	return "", errNoAnalysisText
}

var errNoAnalysisText = errors.New("no text available: transcribe_audio has not completed and no text was provided")
