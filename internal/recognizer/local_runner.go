package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ShellRunner implements ModelRunner by shelling out to a whisper.cpp-
// style CLI binary, keeping the local recognizer a genuine black-box
// external collaborator rather than an in-process model host.
type ShellRunner struct {
	BinaryPath string
	ModelsDir  string
}

// NewShellRunner creates a ModelRunner bound to a CLI binary and a
// directory containing one model file per size (tiny.bin, base.bin,
// medium.bin, large.bin).
func NewShellRunner(binaryPath, modelsDir string) *ShellRunner {
	return &ShellRunner{BinaryPath: binaryPath, ModelsDir: modelsDir}
}

// Run invokes the CLI as a ModelRunner function value.
func (r *ShellRunner) Run(ctx context.Context, modelSize, audioPath string) (*Result, error) {
	modelPath := filepath.Join(r.ModelsDir, modelSize+".bin")

	cmd := exec.CommandContext(ctx, r.BinaryPath, "-m", modelPath, "-f", audioPath, "--output-txt", "--no-timestamps")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("local model runner failed: %w: %s", err, stderr.String())
	}

	return &Result{RawText: strings.TrimSpace(stdout.String())}, nil
}
