package jobstore

import (
	"regexp"
	"testing"
	"time"
)

var jobIDPattern = regexp.MustCompile(`^job_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), 24*time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestCreateJobIDFormat(t *testing.T) {
	s := newTestStore(t)
	job, _, err := s.CreateJob("wf1", "upload_video", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if !jobIDPattern.MatchString(job.JobID) {
		t.Errorf("job id %q does not match expected format", job.JobID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected queued status, got %s", job.Status)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	job, _, _ := s.CreateJob("wf1", "upload_video", nil)

	_ = s.UpdateProgress(job.JobID, 40, "", nil)
	_ = s.UpdateProgress(job.JobID, 10, "", nil) // must not regress
	got, _ := s.Get(job.JobID)
	if got.Progress != 40 {
		t.Errorf("expected progress to stay at 40, got %d", got.Progress)
	}

	_ = s.UpdateProgress(job.JobID, 90, "", nil)
	got, _ = s.Get(job.JobID)
	if got.Progress != 90 {
		t.Errorf("expected progress 90, got %d", got.Progress)
	}
}

func TestCancelAlreadyTerminalIsNoop(t *testing.T) {
	s := newTestStore(t)
	job, _, _ := s.CreateJob("wf1", "upload_video", nil)
	_ = s.SetResult(job.JobID, map[string]any{"video_url": "artifact://x"})

	before, _ := s.Get(job.JobID)
	ok, err := s.Cancel(job.JobID, "user")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if ok {
		t.Errorf("expected cancel of terminal job to be a no-op")
	}
	after, _ := s.Get(job.JobID)
	if after.Status != before.Status {
		t.Errorf("expected status unchanged, before=%s after=%s", before.Status, after.Status)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	s := newTestStore(t)
	job, ctx, _ := s.CreateJob("wf1", "upload_video", nil)

	ok, err := s.Cancel(job.JobID, "user request")
	if err != nil || !ok {
		t.Fatalf("expected cancel to succeed, got ok=%v err=%v", ok, err)
	}

	got, _ := s.Get(job.JobID)
	if got.Status != StatusCancelled || got.CancelReason != "user request" {
		t.Errorf("unexpected job state after cancel: %+v", got)
	}

	select {
	case <-ctx.Done():
	default:
		t.Errorf("expected job context to be cancelled")
	}
}

func TestRecoverInterruptedSweepsNonTerminalJobs(t *testing.T) {
	dir := t.TempDir()
	s1, _ := New(dir, 24*time.Hour, time.Hour)
	job, _, _ := s1.CreateJob("wf1", "transcribe_audio", nil)
	_ = s1.UpdateStatus(job.JobID, StatusRunning, "transcribing")

	s2, err := New(dir, 24*time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n, err := s2.RecoverInterrupted()
	if err != nil {
		t.Fatalf("RecoverInterrupted: %v", err)
	}
	if len(n) != 1 {
		t.Fatalf("expected 1 job recovered, got %d", len(n))
	}

	recovered, err := s2.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if recovered.Status != StatusFailed || recovered.Error == nil || recovered.Error.Code != CodeRestartInterrupted {
		t.Fatalf("expected RESTART_INTERRUPTED failure, got %+v", recovered)
	}
}

func TestSweepRemovesOldTerminalJobs(t *testing.T) {
	s := newTestStore(t)
	s.ttl = 0 // sweep anything terminal immediately for the test

	job, _, _ := s.CreateJob("wf1", "upload_video", nil)
	_ = s.SetResult(job.JobID, map[string]any{})

	time.Sleep(5 * time.Millisecond)
	n, err := s.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job swept, got %d", n)
	}

	if _, err := s.Get(job.JobID); err != ErrJobNotFound {
		t.Fatalf("expected job to be gone after sweep, got err=%v", err)
	}
}
