// Package recognizer provides speech-to-text back-ends for the
// transcribe_audio stage: a local model runner, a cloud recognizer
// (OpenAI Whisper, optionally Azure-backed), and a composition that
// tries the local runner first and falls back to the cloud.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Segment is a timestamped slice of the transcript.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result is what a Recognizer produces.
type Result struct {
	RawText    string
	Segments   []Segment
	Language   string
	Confidence float64
	Duration   time.Duration
}

// Recognizer converts an audio file to text.
type Recognizer interface {
	// Transcribe converts the audio file at audioPath to text.
	Transcribe(ctx context.Context, audioPath string) (*Result, error)

	// Name identifies the back-end for diagnostics and for the
	// transcribe_audio step's service_used field.
	Name() string
}

// Quality is the caller-facing transcription quality knob; it maps to a
// local model size.
type Quality string

const (
	QualityFast     Quality = "fast"
	QualityBalanced Quality = "balanced"
	QualityAccurate Quality = "accurate"
	QualityBest     Quality = "best"
)

// ModelSizeFor maps a requested quality to the local model size, per the
// transcribe_audio stage's contract.
func ModelSizeFor(q Quality) (string, error) {
	switch q {
	case QualityFast:
		return "tiny", nil
	case QualityBalanced, "":
		return "base", nil
	case QualityAccurate:
		return "medium", nil
	case QualityBest:
		return "large", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidQuality, q)
	}
}

var ErrInvalidQuality = errors.New("invalid quality")

// ModelRunner invokes a concrete local speech-to-text model. It is
// injected so the control plane can be exercised and tested without a
// real model binary/runtime present; a production deployment supplies
// one backed by whatever local inference engine it ships.
type ModelRunner func(ctx context.Context, modelSize, audioPath string) (*Result, error)

// Local is a local-model recognizer. Its actual inference is delegated
// to a ModelRunner so this package stays free of any particular
// model-hosting technology.
type Local struct {
	ModelSize string
	Runner    ModelRunner
}

// NewLocal creates a local recognizer for the given quality tier.
func NewLocal(quality Quality, runner ModelRunner) (*Local, error) {
	size, err := ModelSizeFor(quality)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, errors.New("local recognizer requires a model runner")
	}
	return &Local{ModelSize: size, Runner: runner}, nil
}

func (l *Local) Name() string { return "whisper" }

func (l *Local) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
	}
	return l.Runner(ctx, l.ModelSize, audioPath)
}

var ErrAudioNotFound = errors.New("audio file not found")

// CloudConfig configures the cloud recognizer.
type CloudConfig struct {
	APIKey   string
	Model    string
	UseAzure bool
	AzureBaseURL string
	AzureAPIVersion string
}

// Cloud implements Recognizer against the OpenAI (or Azure OpenAI)
// Whisper transcription API.
type Cloud struct {
	client *openai.Client
	model  string
	name   string
}

// NewCloud creates a cloud recognizer. When cfg.UseAzure is set, the
// client is configured against an Azure OpenAI deployment instead of
// api.openai.com.
func NewCloud(cfg CloudConfig) (*Cloud, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cloud recognizer requires an API key")
	}

	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	name := "cloud"
	var clientConfig openai.ClientConfig
	if cfg.UseAzure {
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureBaseURL)
		if cfg.AzureAPIVersion != "" {
			clientConfig.APIVersion = cfg.AzureAPIVersion
		}
		name = "azure"
	} else {
		clientConfig = openai.DefaultConfig(cfg.APIKey)
	}

	return &Cloud{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		name:   name,
	}, nil
}

func (c *Cloud) Name() string { return c.name }

func (c *Cloud) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
	}

	req := openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	resp, err := c.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cloud transcription failed: %w", err)
	}

	result := &Result{
		RawText:  resp.Text,
		Language: resp.Language,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Text:  seg.Text,
		})
	}
	return result, nil
}

// TryLocalThenCloud composes a Local and a Cloud recognizer: when Local
// is set it attempts the local model first, falling back to the cloud
// recognizer only if the local attempt errors for a reason other than
// cancellation; when Local is nil it goes straight to Cloud. The transcribe_audio
// handler depends on this composition, never on either concrete
// implementation.
type TryLocalThenCloud struct {
	Local Recognizer
	Cloud Recognizer
}

// Outcome reports which back-end actually produced the result, for the
// transcribe_audio step's service_used field.
type Outcome struct {
	Result      *Result
	ServiceUsed string
}

func (t *TryLocalThenCloud) Transcribe(ctx context.Context, audioPath string) (*Outcome, error) {
	if t.Local != nil {
		result, err := t.Local.Transcribe(ctx, audioPath)
		if err == nil {
			return &Outcome{Result: result, ServiceUsed: t.Local.Name()}, nil
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if t.Cloud == nil {
			return nil, fmt.Errorf("local recognizer failed and no cloud fallback configured: %w", err)
		}
	}

	if t.Cloud == nil {
		return nil, errors.New("no recognizer configured")
	}

	result, err := t.Cloud.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("cloud fallback also failed: %w", err)
	}

	serviceUsed := t.Cloud.Name()
	if t.Local != nil {
		// Fell back from a failed local attempt: record this distinctly
		// from a cloud-only transcription so callers can tell them apart.
		serviceUsed = "azure_fallback"
	}
	return &Outcome{Result: result, ServiceUsed: serviceUsed}, nil
}
