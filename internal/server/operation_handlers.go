package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vidflow/pipeline/internal/artifact"
	"github.com/vidflow/pipeline/internal/enhancer"
	"github.com/vidflow/pipeline/internal/executor"
	"github.com/vidflow/pipeline/internal/jobstore"
	"github.com/vidflow/pipeline/internal/recognizer"
	"github.com/vidflow/pipeline/internal/workflowstore"
)

// readAndRemove reads a temporary file produced by an external tool (the
// demuxer) into memory and removes it, so the artifact store becomes the
// file's only owner.
func readAndRemove(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted audio: %w", err)
	}
	os.Remove(path)
	return data, nil
}

// acceptedResponse writes the 202 body every job-based endpoint shares.
func (s *Server) acceptedResponse(c *gin.Context, jobID, workflowID string) {
	c.JSON(http.StatusAccepted, jobAccepted{
		JobID:      jobID,
		Status:     string(jobstore.StatusQueued),
		WorkflowID: workflowID,
		NextAction: "poll GET /jobs/" + jobID,
	})
}

type uploadVideoRequest struct {
	SourceURL  string `json:"source_url"`
	WorkflowID string `json:"workflow_id"`
}

func (s *Server) handleUploadVideo(c *gin.Context) {
	var req uploadVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SourceURL == "" || req.WorkflowID == "" {
		respondValidation(c, "source_url and workflow_id are required")
		return
	}

	if err := s.workflows.StartStep(req.WorkflowID, workflowstore.StepUploadVideo, false); err != nil {
		respondStartStepError(c, err)
		return
	}

	job, jobCtx, err := s.jobs.CreateJob(req.WorkflowID, opUpload, map[string]any{"source_url": req.SourceURL})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: APIError{Code: jobstore.CodeInternal, Message: "failed to create job"}})
		return
	}

	s.exec.Submit(jobCtx, job.JobID, opUpload, s.uploadTask(req.WorkflowID, req.SourceURL))
	s.acceptedResponse(c, job.JobID, req.WorkflowID)
}

func (s *Server) uploadTask(workflowID, sourceURL string) executor.Task {
	return func(ctx context.Context, report executor.ProgressFunc) (any, *jobstore.JobError) {
		var (
			uri  string
			size int64
			err  error
		)

		if looksLikeURL(sourceURL) {
			uri, size, err = s.artifacts.StoreFromURL(ctx, sourceURL, workflowID, func(downloaded, total int64) {
				if total > 0 {
					report(int(downloaded*100/total), "downloading")
				} else {
					report(1, "downloading")
				}
			})
		} else {
			report(1, "copying local file")
			uri, size, err = s.artifacts.StoreFromPath(sourceURL, workflowID)
		}

		if err != nil {
			jobErr := classifyArtifactErr(err)
			_ = s.workflows.FailStep(workflowID, workflowstore.StepUploadVideo, &workflowstore.StepError{
				Code: jobErr.Code, Message: jobErr.Message,
			})
			return nil, jobErr
		}

		clean := strings.SplitN(sourceURL, "?", 2)[0]
		format := strings.TrimPrefix(filepath.Ext(clean), ".")
		if format == "" {
			format = "mp4"
		}
		result := &workflowstore.UploadResult{
			VideoURL:  uri,
			Size:      size,
			Format:    format,
			SourceURL: sourceURL,
		}
		if err := s.workflows.CompleteStep(workflowID, workflowstore.StepUploadVideo, &workflowstore.StepResult{Upload: result}); err != nil {
			return nil, &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error()}
		}
		return result, nil
	}
}

type extractAudioRequest struct {
	WorkflowID string `json:"workflow_id"`
}

func (s *Server) handleExtractAudio(c *gin.Context) {
	var req extractAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkflowID == "" {
		respondValidation(c, "workflow_id is required")
		return
	}

	if err := s.workflows.StartStep(req.WorkflowID, workflowstore.StepExtractAudio, false); err != nil {
		respondStartStepError(c, err)
		return
	}

	uploadResult, err := s.workflows.GetStepResult(req.WorkflowID, workflowstore.StepUploadVideo)
	if err != nil || uploadResult == nil || uploadResult.Upload == nil || uploadResult.Upload.VideoURL == "" {
		_ = s.workflows.FailRunningStep(req.WorkflowID, workflowstore.StepExtractAudio, jobstore.CodeNoAudioReference, "upload_video result has no video_url")
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeNoAudioReference, Message: "upload_video result has no video_url"},
			NextAction: "re-run upload-video",
		})
		return
	}
	if !s.artifacts.Exists(uploadResult.Upload.VideoURL) {
		_ = s.workflows.FailRunningStep(req.WorkflowID, workflowstore.StepExtractAudio, jobstore.CodeAudioFileNotFound, "video artifact no longer exists")
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeAudioFileNotFound, Message: "video artifact no longer exists"},
			NextAction: "re-run upload-video",
		})
		return
	}

	job, jobCtx, err := s.jobs.CreateJob(req.WorkflowID, opExtract, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: APIError{Code: jobstore.CodeInternal, Message: "failed to create job"}})
		return
	}

	s.exec.Submit(jobCtx, job.JobID, opExtract, s.extractAudioTask(req.WorkflowID, uploadResult.Upload.VideoURL))
	s.acceptedResponse(c, job.JobID, req.WorkflowID)
}

func (s *Server) extractAudioTask(workflowID, videoURL string) executor.Task {
	return func(ctx context.Context, report executor.ProgressFunc) (any, *jobstore.JobError) {
		start := time.Now()
		report(1, "resolving video artifact")

		videoPath, err := s.artifacts.Resolve(videoURL)
		if err != nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeAudioFileNotFound, Message: err.Error(), Retryable: false}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepExtractAudio, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		report(10, "extracting audio")
		wavPath, err := s.demuxer.Extract(ctx, videoPath)
		if err != nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error(), Retryable: true, RetryAfterMS: 60000}
			if ctx.Err() != nil {
				jobErr = &jobstore.JobError{Code: jobstore.CodeCancelled, Message: "extraction cancelled", Retryable: false}
			}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepExtractAudio, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		data, err := readAndRemove(wavPath)
		if err != nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error(), Retryable: true, RetryAfterMS: 60000}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepExtractAudio, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		report(80, "storing extracted audio")
		audioURL, err := s.artifacts.StoreBytes(data, workflowID, artifact.KindAudio)
		if err != nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error(), Retryable: true, RetryAfterMS: 60000}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepExtractAudio, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		cleanup := s.artifacts.Cleanup(videoURL)

		result := &workflowstore.ExtractAudioResult{
			AudioURL:         audioURL,
			AudioSize:        int64(len(data)),
			VideoCleaned:     cleanup.Success,
			ExtractionTimeMS: time.Since(start).Milliseconds(),
		}
		if err := s.workflows.CompleteStep(workflowID, workflowstore.StepExtractAudio, &workflowstore.StepResult{ExtractAudio: result}); err != nil {
			return nil, &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error()}
		}
		return result, nil
	}
}

type transcribeAudioRequest struct {
	WorkflowID string `json:"workflow_id"`
	Quality    string `json:"quality"`
	Language   string `json:"language"`
	UseAzure   bool   `json:"use_azure"`
}

func (s *Server) handleTranscribeAudio(c *gin.Context) {
	var req transcribeAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkflowID == "" {
		respondValidation(c, "workflow_id is required")
		return
	}

	quality := recognizer.Quality(req.Quality)
	if req.Quality == "" {
		quality = recognizer.QualityBalanced
	}
	if _, err := recognizer.ModelSizeFor(quality); err != nil {
		respondValidation(c, fmt.Sprintf("quality must be one of fast, balanced, accurate, best, got %q", req.Quality))
		return
	}

	if err := s.workflows.StartStep(req.WorkflowID, workflowstore.StepTranscribeAudio, false); err != nil {
		respondStartStepError(c, err)
		return
	}

	extractResult, err := s.workflows.GetStepResult(req.WorkflowID, workflowstore.StepExtractAudio)
	if err != nil || extractResult == nil || extractResult.ExtractAudio == nil || extractResult.ExtractAudio.AudioURL == "" {
		_ = s.workflows.FailRunningStep(req.WorkflowID, workflowstore.StepTranscribeAudio, jobstore.CodeNoAudioReference, "extract_audio result has no audio_url")
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeNoAudioReference, Message: "extract_audio result has no audio_url"},
			NextAction: "re-run extract-audio",
		})
		return
	}
	if !s.artifacts.Exists(extractResult.ExtractAudio.AudioURL) {
		_ = s.workflows.FailRunningStep(req.WorkflowID, workflowstore.StepTranscribeAudio, jobstore.CodeAudioFileNotFound, "audio artifact no longer exists")
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeAudioFileNotFound, Message: "audio artifact no longer exists"},
			NextAction: "re-run extract-audio",
		})
		return
	}

	job, jobCtx, err := s.jobs.CreateJob(req.WorkflowID, opTranscribe, map[string]any{
		"quality": string(quality), "language": req.Language, "use_azure": req.UseAzure,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: APIError{Code: jobstore.CodeInternal, Message: "failed to create job"}})
		return
	}

	s.exec.Submit(jobCtx, job.JobID, opTranscribe, s.transcribeTask(req.WorkflowID, extractResult.ExtractAudio.AudioURL, quality, req.UseAzure))
	s.acceptedResponse(c, job.JobID, req.WorkflowID)
}

func (s *Server) transcribeTask(workflowID, audioURL string, quality recognizer.Quality, useAzure bool) executor.Task {
	return func(ctx context.Context, report executor.ProgressFunc) (any, *jobstore.JobError) {
		report(1, "resolving audio artifact")
		audioPath, err := s.artifacts.Resolve(audioURL)
		if err != nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeAudioFileNotFound, Message: err.Error(), Retryable: false}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepTranscribeAudio, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		local, localErr := recognizer.NewLocal(quality, s.localRunner)
		cloudCfg := s.cloudCfg
		cloudCfg.UseAzure = useAzure
		cloud, cloudErr := recognizer.NewCloud(cloudCfg)

		var composed recognizer.TryLocalThenCloud
		if localErr == nil {
			composed.Local = local
		}
		if cloudErr == nil {
			composed.Cloud = cloud
		}
		if composed.Local == nil && composed.Cloud == nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeTranscriptionFail, Message: "no recognizer backend is configured", Retryable: false}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepTranscribeAudio, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		report(10, "transcribing")
		outcome, err := composed.Transcribe(ctx, audioPath)
		if err != nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeTranscriptionFail, Message: err.Error(), Retryable: true, RetryAfterMS: 60000}
			if ctx.Err() != nil {
				jobErr = &jobstore.JobError{Code: jobstore.CodeCancelled, Message: "transcription cancelled", Retryable: false}
			}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepTranscribeAudio, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		cleanup := s.artifacts.Cleanup(audioURL)

		segments := make([]workflowstore.Segment, 0, len(outcome.Result.Segments))
		for _, seg := range outcome.Result.Segments {
			segments = append(segments, workflowstore.Segment{
				StartMS: seg.Start.Milliseconds(),
				EndMS:   seg.End.Milliseconds(),
				Text:    seg.Text,
			})
		}

		result := &workflowstore.TranscribeResult{
			RawText:      outcome.Result.RawText,
			Segments:     segments,
			Language:     outcome.Result.Language,
			Confidence:   outcome.Result.Confidence,
			DurationMS:   outcome.Result.Duration.Milliseconds(),
			ServiceUsed:  outcome.ServiceUsed,
			QualityUsed:  string(quality),
			AudioCleaned: cleanup.Success,
		}
		if err := s.workflows.CompleteStep(workflowID, workflowstore.StepTranscribeAudio, &workflowstore.StepResult{Transcribe: result}); err != nil {
			return nil, &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error()}
		}
		return result, nil
	}
}

type enhanceTranscriptionRequest struct {
	WorkflowID string `json:"workflow_id"`
	RawText    string `json:"raw_text"`
}

func (s *Server) handleEnhanceTranscription(c *gin.Context) {
	var req enhanceTranscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WorkflowID == "" {
		respondValidation(c, "workflow_id is required")
		return
	}

	if err := s.workflows.StartStep(req.WorkflowID, workflowstore.StepEnhanceTranscription, false); err != nil {
		respondStartStepError(c, err)
		return
	}

	text := req.RawText
	if strings.TrimSpace(text) == "" {
		transcribeResult, err := s.workflows.GetStepResult(req.WorkflowID, workflowstore.StepTranscribeAudio)
		if err == nil && transcribeResult != nil && transcribeResult.Transcribe != nil {
			text = transcribeResult.Transcribe.RawText
		}
	}
	if strings.TrimSpace(text) == "" {
		_ = s.workflows.FailRunningStep(req.WorkflowID, workflowstore.StepEnhanceTranscription, jobstore.CodeNoTextToEnhance, "no raw_text provided and transcribe_audio has no result")
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      APIError{Code: jobstore.CodeNoTextToEnhance, Message: "no raw_text provided and transcribe_audio has no result"},
			NextAction: "provide raw_text or complete transcribe-audio first",
		})
		return
	}

	job, jobCtx, err := s.jobs.CreateJob(req.WorkflowID, opEnhance, map[string]any{"raw_text_len": len(text)})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: APIError{Code: jobstore.CodeInternal, Message: "failed to create job"}})
		return
	}

	s.exec.Submit(jobCtx, job.JobID, opEnhance, s.enhanceTask(req.WorkflowID, text))
	s.acceptedResponse(c, job.JobID, req.WorkflowID)
}

func (s *Server) enhanceTask(workflowID, text string) executor.Task {
	return func(ctx context.Context, report executor.ProgressFunc) (any, *jobstore.JobError) {
		if s.enhancer == nil {
			jobErr := &jobstore.JobError{Code: jobstore.CodeInternal, Message: "no enhancer backend is configured", Retryable: false}
			_ = s.workflows.FailStep(workflowID, workflowstore.StepEnhanceTranscription, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		report(10, "enhancing")
		out, err := s.enhancer.Enhance(ctx, text)
		if err != nil {
			jobErr := enhanceJobError(ctx, err)
			_ = s.workflows.FailStep(workflowID, workflowstore.StepEnhanceTranscription, &workflowstore.StepError{Code: jobErr.Code, Message: jobErr.Message})
			return nil, jobErr
		}

		result := &workflowstore.EnhanceResult{
			EnhancedText: out.EnhancedText,
			Summary:      out.Summary,
			KeyPoints:    out.KeyPoints,
			Topics:       out.Topics,
			Sentiment:    out.Sentiment,
			ModelUsed:    out.ModelUsed,
		}
		if err := s.workflows.CompleteStep(workflowID, workflowstore.StepEnhanceTranscription, &workflowstore.StepResult{Enhance: result}); err != nil {
			return nil, &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error()}
		}
		return result, nil
	}
}

func enhanceJobError(ctx context.Context, err error) *jobstore.JobError {
	if ctx.Err() != nil {
		return &jobstore.JobError{Code: jobstore.CodeCancelled, Message: "enhancement cancelled", Retryable: false}
	}
	if errors.Is(err, enhancer.ErrNoTextToEnhance) {
		return &jobstore.JobError{Code: jobstore.CodeNoTextToEnhance, Message: err.Error(), Retryable: false}
	}
	return &jobstore.JobError{Code: jobstore.CodeInternal, Message: err.Error(), Retryable: true, RetryAfterMS: 60000}
}
