package recognizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestModelSizeForQuality(t *testing.T) {
	cases := map[Quality]string{
		QualityFast:     "tiny",
		QualityBalanced: "base",
		QualityAccurate: "medium",
		QualityBest:     "large",
	}
	for q, want := range cases {
		got, err := ModelSizeFor(q)
		if err != nil {
			t.Fatalf("ModelSizeFor(%s): %v", q, err)
		}
		if got != want {
			t.Errorf("ModelSizeFor(%s) = %s, want %s", q, got, want)
		}
	}

	if _, err := ModelSizeFor("warp-speed"); !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("expected ErrInvalidQuality for an unknown quality, got %v", err)
	}
}

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("fake-wav"), 0o644); err != nil {
		t.Fatalf("write temp audio: %v", err)
	}
	return path
}

func TestTryLocalThenCloudPrefersLocal(t *testing.T) {
	audioPath := writeTempAudio(t)
	local, err := NewLocal(QualityBalanced, func(ctx context.Context, modelSize, audioPath string) (*Result, error) {
		return &Result{RawText: "local transcript"}, nil
	})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	composed := &TryLocalThenCloud{Local: local, Cloud: failingRecognizer{}}
	outcome, err := composed.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if outcome.ServiceUsed != "whisper" {
		t.Errorf("expected service_used=whisper, got %s", outcome.ServiceUsed)
	}
	if outcome.Result.RawText != "local transcript" {
		t.Errorf("expected local transcript to win, got %q", outcome.Result.RawText)
	}
}

func TestTryLocalThenCloudFallsBackOnLocalFailure(t *testing.T) {
	audioPath := writeTempAudio(t)
	local, _ := NewLocal(QualityBalanced, func(ctx context.Context, modelSize, audioPath string) (*Result, error) {
		return nil, errors.New("model crashed")
	})

	cloud := stubRecognizer{name: "cloud", result: &Result{RawText: "cloud transcript"}}
	composed := &TryLocalThenCloud{Local: local, Cloud: cloud}

	outcome, err := composed.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if outcome.ServiceUsed != "azure_fallback" {
		t.Errorf("expected service_used=azure_fallback, got %s", outcome.ServiceUsed)
	}
	if outcome.Result.RawText != "cloud transcript" {
		t.Errorf("expected cloud transcript on fallback, got %q", outcome.Result.RawText)
	}
}

func TestLocalMissingAudioFile(t *testing.T) {
	local, _ := NewLocal(QualityFast, func(ctx context.Context, modelSize, audioPath string) (*Result, error) {
		return &Result{}, nil
	})
	if _, err := local.Transcribe(context.Background(), "/does/not/exist.wav"); !errors.Is(err, ErrAudioNotFound) {
		t.Errorf("expected ErrAudioNotFound, got %v", err)
	}
}

type stubRecognizer struct {
	name   string
	result *Result
}

func (s stubRecognizer) Name() string { return s.name }
func (s stubRecognizer) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	return s.result, nil
}

type failingRecognizer struct{}

func (failingRecognizer) Name() string { return "cloud" }
func (failingRecognizer) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	return nil, errors.New("should not be called")
}
