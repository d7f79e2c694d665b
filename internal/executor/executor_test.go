package executor

import (
	"context"
	"testing"
	"time"

	"github.com/vidflow/pipeline/internal/jobstore"
)

func TestSubmitRunsTaskAndSetsResult(t *testing.T) {
	jobs, err := jobstore.New(t.TempDir(), 24*time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("jobstore.New: %v", err)
	}
	job, jobCtx, err := jobs.CreateJob("wf1", "upload_video", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	ex := New(jobs)
	ex.Configure("upload_video", 2, time.Second)

	done := make(chan struct{})
	ex.Submit(jobCtx, job.JobID, "upload_video", func(ctx context.Context, report ProgressFunc) (any, *jobstore.JobError) {
		report(50, "halfway")
		defer close(done)
		return map[string]any{"video_url": "artifact://wf1/video-x.mp4"}, nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run in time")
	}

	// give SetResult's own goroutine write a moment to land
	time.Sleep(20 * time.Millisecond)

	got, err := jobs.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobstore.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestSubmitRecordsTaskError(t *testing.T) {
	jobs, _ := jobstore.New(t.TempDir(), 24*time.Hour, time.Hour)
	job, jobCtx, _ := jobs.CreateJob("wf1", "extract_audio", nil)

	ex := New(jobs)
	ex.Configure("extract_audio", 1, time.Second)

	done := make(chan struct{})
	ex.Submit(jobCtx, job.JobID, "extract_audio", func(ctx context.Context, report ProgressFunc) (any, *jobstore.JobError) {
		defer close(done)
		return nil, &jobstore.JobError{Code: jobstore.CodeTranscriptionFail, Message: "boom", Retryable: true}
	})

	<-done
	time.Sleep(20 * time.Millisecond)

	got, err := jobs.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobstore.StatusFailed || got.Error == nil || got.Error.Code != jobstore.CodeTranscriptionFail {
		t.Fatalf("expected failed job with propagated error, got %+v", got)
	}
}

func TestSubmitHonorsTimeout(t *testing.T) {
	jobs, _ := jobstore.New(t.TempDir(), 24*time.Hour, time.Hour)
	job, jobCtx, _ := jobs.CreateJob("wf1", "transcribe_audio", nil)

	ex := New(jobs)
	ex.Configure("transcribe_audio", 1, 30*time.Millisecond)

	started := make(chan struct{})
	ex.Submit(jobCtx, job.JobID, "transcribe_audio", func(ctx context.Context, report ProgressFunc) (any, *jobstore.JobError) {
		close(started)
		<-ctx.Done()
		return nil, nil
	})

	<-started
	time.Sleep(150 * time.Millisecond)

	got, err := jobs.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobstore.StatusFailed || got.Error == nil || got.Error.Code != jobstore.CodeTimeout {
		t.Fatalf("expected TIMEOUT failure, got %+v", got)
	}
}
