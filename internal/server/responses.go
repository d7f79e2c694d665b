package server

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/vidflow/pipeline/internal/jobstore"
	"github.com/vidflow/pipeline/internal/workflowstore"
)

// jobIDPattern enforces the job_<uuid> format required of every job_id
// accepted from a client.
var jobIDPattern = regexp.MustCompile(`^job_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// APIError is the error body shape used across every endpoint.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse is returned alongside a non-2xx status.
type errorResponse struct {
	Error      APIError `json:"error"`
	NextAction string   `json:"next_action,omitempty"`
}

// jobAccepted is the 202 body returned by every job-based endpoint.
type jobAccepted struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	WorkflowID string `json:"workflow_id"`
	NextAction string `json:"next_action"`
}

// httpStatusFor maps a taxonomy error code to the HTTP status it must
// be surfaced with.
func httpStatusFor(code string) int {
	switch code {
	case jobstore.CodeValidation, jobstore.CodeStepPrecondition, jobstore.CodeNoAudioReference,
		jobstore.CodeAudioFileNotFound, jobstore.CodeNoTextToEnhance, jobstore.CodeSourceTooLarge:
		return http.StatusBadRequest
	case jobstore.CodeWorkflowNotFound:
		return http.StatusNotFound
	case jobstore.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// stepPreconditionResponse translates a StartStep error into the status,
// code, and message for the two distinct causes the taxonomy lumps under
// STEP_PRECONDITION: a conflicting in-flight step is a 409 (retry later),
// while a missing upstream dependency is a 400 (fix the request).
func stepPreconditionResponse(err error) (status int, resp errorResponse) {
	switch {
	case errors.Is(err, workflowstore.ErrStepAlreadyRunning):
		return http.StatusConflict, errorResponse{
			Error:      APIError{Code: jobstore.CodeStepPrecondition, Message: err.Error()},
			NextAction: "poll the existing job for this step instead of retrying",
		}
	case errors.Is(err, workflowstore.ErrStepDependencyIncomplete):
		return http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeStepPrecondition, Message: err.Error()},
			NextAction: "complete the required upstream step first",
		}
	default:
		return http.StatusBadRequest, errorResponse{
			Error: APIError{Code: jobstore.CodeStepPrecondition, Message: err.Error()},
		}
	}
}

// nextActionFor gives every response a consistent hint toward the next
// sensible client call.
func nextActionFor(code string, jobID string) string {
	switch code {
	case "":
		if jobID != "" {
			return "poll GET /jobs/" + jobID
		}
		return ""
	case jobstore.CodeValidation:
		return "fix the request body and retry"
	case jobstore.CodeWorkflowNotFound:
		return "create a workflow with POST /workflow first"
	case jobstore.CodeStepPrecondition:
		return "complete the required upstream step first"
	case jobstore.CodeTimeout, jobstore.CodeSourceUnreachable, jobstore.CodeTranscriptionFail, jobstore.CodeRestartInterrupted:
		return "retry the request"
	case jobstore.CodeCancelled:
		return "reissue the request if the operation is still needed"
	default:
		return "contact support if the problem persists"
	}
}
