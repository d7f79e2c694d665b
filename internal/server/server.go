// Package server is the HTTP Surface (component F): thin request
// parsing/validation/auth, dispatch to the Operation Handlers
// (component E), and the composition root wiring every other component
// together.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vidflow/pipeline/internal/artifact"
	"github.com/vidflow/pipeline/internal/config"
	"github.com/vidflow/pipeline/internal/demux"
	"github.com/vidflow/pipeline/internal/enhancer"
	"github.com/vidflow/pipeline/internal/executor"
	"github.com/vidflow/pipeline/internal/jobstore"
	"github.com/vidflow/pipeline/internal/recognizer"
	"github.com/vidflow/pipeline/internal/workflowstore"
)

const serviceVersion = "1.0.0"

// Server is the composition root: it owns every store and collaborator
// and exposes them to the HTTP layer.
type Server struct {
	cfg *config.Config

	workflows *workflowstore.Store
	jobs      *jobstore.Store
	artifacts *artifact.Store
	exec      *executor.Executor

	demuxer  demux.Demuxer
	enhancer enhancer.Enhancer

	localRunner recognizer.ModelRunner
	cloudCfg    recognizer.CloudConfig

	engine     *gin.Engine
	httpServer *http.Server
}

const (
	opUpload     = "upload_video"
	opExtract    = "extract_audio"
	opTranscribe = "transcribe_audio"
	opEnhance    = "enhance_transcription"
)

// stepForOperation maps a job's operation kind back to the workflow step
// it advances, for restart recovery. Only job-based operations ever
// reach jobstore, so the four immediate analysis steps have no entry.
func stepForOperation(operation string) (workflowstore.StepName, bool) {
	switch operation {
	case opUpload:
		return workflowstore.StepUploadVideo, true
	case opExtract:
		return workflowstore.StepExtractAudio, true
	case opTranscribe:
		return workflowstore.StepTranscribeAudio, true
	case opEnhance:
		return workflowstore.StepEnhanceTranscription, true
	default:
		return "", false
	}
}

// New builds the full object graph: stores, executor, external
// collaborators, and the gin router. No network I/O happens here;
// Start binds the listening socket.
func New(cfg *config.Config) (*Server, error) {
	workflows, err := workflowstore.New(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workflow store: %w", err)
	}

	jobs, err := jobstore.New(cfg.StorageDir, cfg.Jobs.TTL, cfg.Jobs.SweepInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}

	artifacts := artifact.New(cfg.StorageDir, cfg.Jobs.MaxArtifactBytes)

	exec := executor.New(jobs)
	for _, op := range []string{opUpload, opExtract, opTranscribe, opEnhance} {
		exec.Configure(op, cfg.ConcurrencyFor(op), cfg.TimeoutFor(op))
	}

	var enh enhancer.Enhancer
	switch cfg.Enhancer.Provider {
	case "openai_compatible":
		enh, err = enhancer.NewOpenAICompatible(enhancer.OpenAICompatibleConfig{
			APIKey:  cfg.Enhancer.OpenAICompatibleAPIKey,
			BaseURL: cfg.Enhancer.OpenAICompatibleBaseURL,
			Model:   cfg.Enhancer.OpenAICompatibleModel,
		})
	default:
		enh, err = enhancer.NewAnthropic(enhancer.AnthropicConfig{
			APIKey: cfg.Enhancer.AnthropicAPIKey,
			Model:  cfg.Enhancer.AnthropicModel,
		})
	}
	if err != nil {
		log.Printf("warning: enhancer provider %q not fully configured: %v", cfg.Enhancer.Provider, err)
	}

	s := &Server{
		cfg:       cfg,
		workflows: workflows,
		jobs:      jobs,
		artifacts: artifacts,
		exec:      exec,
		demuxer:   demux.NewFFmpeg(cfg.Recognizer.FFmpegPath),
		enhancer:  enh,
		localRunner: recognizer.NewShellRunner(
			cfg.Recognizer.LocalBinaryPath,
			cfg.Recognizer.ModelsDir,
		).Run,
		cloudCfg: recognizer.CloudConfig{
			APIKey:       cfg.Recognizer.OpenAIAPIKey,
			AzureBaseURL: cfg.Recognizer.AzureBaseURL,
		},
	}

	s.engine = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, _ any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error: APIError{Code: jobstore.CodeInternal, Message: "internal server error"},
		})
	}))
	r.Use(s.loggingMiddleware())
	r.Use(s.authMiddleware())

	r.GET("/health", s.handleHealth)
	r.POST("/workflow", s.handleCreateWorkflow)
	r.GET("/workflow/:workflow_id", s.handleGetWorkflow)

	r.POST("/upload-video", s.handleUploadVideo)
	r.POST("/extract-audio", s.handleExtractAudio)
	r.POST("/transcribe-audio", s.handleTranscribeAudio)
	r.POST("/enhance-transcription", s.handleEnhanceTranscription)

	r.POST("/summarize-content", s.handleSummarizeContent)
	r.POST("/extract-key-points", s.handleExtractKeyPoints)
	r.POST("/analyze-sentiment", s.handleAnalyzeSentiment)
	r.POST("/identify-topics", s.handleIdentifyTopics)

	r.GET("/jobs/:job_id", s.handleGetJob)
	r.POST("/jobs/:job_id/cancel", s.handleCancelJob)

	return r
}

// loggingMiddleware logs method, path, status, and latency for every
// request, mirroring the teacher's loggingMiddleware but as gin
// middleware.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// authMiddleware requires X-API-Key on every route except /health when
// an API key is configured.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.Server.APIKey == "" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.cfg.Server.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error: APIError{Code: "UNAUTHORIZED", Message: "invalid or missing API key"},
			})
			return
		}
		c.Next()
	}
}

// Start runs startup recovery (RESTART_INTERRUPTED sweep), launches the
// background TTL sweep loop, and serves HTTP until ctx is cancelled or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	recovered, err := s.jobs.RecoverInterrupted()
	if err != nil {
		return fmt.Errorf("failed to run restart recovery: %w", err)
	}
	for _, r := range recovered {
		step, ok := stepForOperation(r.Operation)
		if !ok {
			continue
		}
		if err := s.workflows.FailRunningStep(r.WorkflowID, step, jobstore.CodeRestartInterrupted, "process restarted while job was in flight"); err != nil {
			log.Printf("restart recovery: failed to fail step %s for workflow %s: %v", step, r.WorkflowID, err)
		}
	}
	if len(recovered) > 0 {
		log.Printf("restart recovery: marked %d interrupted job(s) as failed", len(recovered))
	}

	go s.jobs.RunSweepLoop(ctx)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("starting pipeline server on port %d", s.cfg.Server.Port)
	log.Printf("storage directory: %s", s.cfg.StorageDir)

	err = s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      "pipeline-server",
		"version":      serviceVersion,
		"architecture": "workflow/job control plane",
		"timestamp":    time.Now().UTC(),
	})
}
