package mermaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanwahyu/sketch2sys/internal/domain/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

// Mode selects where mermaid-cli runs
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeDocker Mode = "docker"
)

const (
	defaultBinary  = "mmdc"
	defaultImage   = "minlag/mermaid-cli:latest"
	defaultTimeout = 30 * time.Second

	inputName  = "diagram.mmd"
	outputName = "diagram.svg"
	configName = "config.json"
)

// Runner compiles Mermaid source with mermaid-cli, either from PATH or in a container.
type Runner struct {
	Mode    Mode
	Binary  string
	Image   string
	TempDir string
	Timeout time.Duration
}

func NewRunner(mode Mode, binary, image, tempDir string, timeout time.Duration) *Runner {
	if mode == "" {
		mode = ModeLocal
	}
	if binary == "" {
		binary = defaultBinary
	}
	if image == "" {
		image = defaultImage
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{Mode: mode, Binary: binary, Image: image, TempDir: tempDir, Timeout: timeout}
}

// Compile implements diagram.Compiler. Every failure wraps sketch.ErrRender and
// no partial output is returned.
func (r *Runner) Compile(ctx context.Context, source string, theme diagram.Theme) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	base := r.TempDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", fmt.Errorf("%w: temp dir: %v", sketch.ErrRender, err)
		}
		abs, err := filepath.Abs(base)
		if err != nil {
			return "", fmt.Errorf("%w: temp dir: %v", sketch.ErrRender, err)
		}
		base = abs
	}
	workDir, err := os.MkdirTemp(base, "mermaid-")
	if err != nil {
		return "", fmt.Errorf("%w: temp dir: %v", sketch.ErrRender, err)
	}
	defer os.RemoveAll(workDir)

	cfg, err := json.Marshal(theme)
	if err != nil {
		return "", fmt.Errorf("%w: theme: %v", sketch.ErrRender, err)
	}
	if err := os.WriteFile(filepath.Join(workDir, configName), cfg, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", sketch.ErrRender, err)
	}
	if err := os.WriteFile(filepath.Join(workDir, inputName), []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", sketch.ErrRender, err)
	}

	cmd, err := r.command(ctx, workDir)
	if err != nil {
		return "", err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	outPath := filepath.Join(workDir, outputName)
	if err := cmd.Run(); err != nil {
		// mermaid-cli may leave a half written svg behind
		os.Remove(outPath)
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", sketch.ErrRender, ctx.Err())
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return "", fmt.Errorf("%w: exit %d: %s", sketch.ErrRender, ee.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%w: run %s: %v", sketch.ErrRender, r.Mode, err)
	}

	svg, err := os.ReadFile(outPath)
	if err != nil || len(bytes.TrimSpace(svg)) == 0 {
		return "", fmt.Errorf("%w: SVG not generated", sketch.ErrRender)
	}
	return string(svg), nil
}

// Check reports whether the renderer can be started: the mmdc binary in local
// mode, the docker CLI in docker mode.
func (r *Runner) Check(ctx context.Context) error {
	bin := r.Binary
	switch r.Mode {
	case ModeLocal:
	case ModeDocker:
		bin = "docker"
	default:
		return fmt.Errorf("unsupported renderer mode: %s", r.Mode)
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("renderer %s: %w", r.Mode, err)
	}
	return ctx.Err()
}

func (r *Runner) command(ctx context.Context, workDir string) (*exec.Cmd, error) {
	switch r.Mode {
	case ModeLocal:
		cmd := exec.CommandContext(ctx, r.Binary,
			"-i", filepath.Join(workDir, inputName),
			"-o", filepath.Join(workDir, outputName),
			"-c", filepath.Join(workDir, configName),
			"-b", "transparent",
			"-q",
		)
		cmd.Dir = workDir
		return cmd, nil

	case ModeDocker:
		return exec.CommandContext(ctx, "docker", "run", "--rm",
			"--network", "none",
			"-v", fmt.Sprintf("%s:/data", workDir),
			r.Image,
			"-i", "/data/"+inputName,
			"-o", "/data/"+outputName,
			"-c", "/data/"+configName,
			"-b", "transparent",
			"-q",
		), nil

	default:
		return nil, fmt.Errorf("%w: unsupported renderer mode: %s", sketch.ErrRender, r.Mode)
	}
}
