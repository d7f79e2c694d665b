// Package demux implements the audio-extraction collaborator: given a
// video file, produce a mono 16kHz WAV suitable for the recognizer
// back-ends. The concrete implementation shells out to ffmpeg as a
// black-box external tool, per the control plane's contract — this
// package owns no media-codec logic of its own.
package demux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Demuxer converts a video file to a WAV audio file.
type Demuxer interface {
	// Extract produces a WAV file from videoPath and returns its path.
	// The caller owns the returned file and is responsible for removing
	// it once consumed.
	Extract(ctx context.Context, videoPath string) (wavPath string, err error)
}

// FFmpeg shells out to the ffmpeg binary on PATH (or at a configured
// location) to perform the extraction.
type FFmpeg struct {
	BinaryPath string
}

// NewFFmpeg creates a demuxer that invokes the given ffmpeg binary
// (empty string defaults to "ffmpeg" resolved via PATH).
func NewFFmpeg(binaryPath string) *FFmpeg {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &FFmpeg{BinaryPath: binaryPath}
}

// Extract runs `ffmpeg -y -i <video> -vn -ac 1 -ar 16000 -f wav <out>.wav.tmp`,
// producing a mono 16kHz WAV next to the source file with a distinct
// extension. The output is written to that temp path (hence the explicit
// -f wav, since ffmpeg cannot infer a format from ".tmp") and renamed
// into place so a failed/partial run never leaves a file the caller
// could mistake for a finished extraction.
func (f *FFmpeg) Extract(ctx context.Context, videoPath string) (string, error) {
	dir := filepath.Dir(videoPath)
	base := filepath.Base(videoPath)
	outPath := filepath.Join(dir, base+".extract.wav")
	tmpPath := outPath + ".tmp"

	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		tmpPath,
	}

	cmd := exec.CommandContext(ctx, f.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg extraction failed: %w: %s", err, stderr.String())
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize extracted audio: %w", err)
	}

	return outPath, nil
}
