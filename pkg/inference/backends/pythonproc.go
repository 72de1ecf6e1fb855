// Package backends provides the shared subprocess plumbing used by the
// concrete inference backends. Each backend wraps a Python entry point that
// does the actual model loading and inference; this package only knows how
// to find an interpreter and run a command against it.
package backends

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/austery/asr-runner/pkg/logging"
)

// ErrPythonNotFound is returned when no usable Python interpreter can be
// located for a backend.
var ErrPythonNotFound = errors.New("backends: no python interpreter found")

// FindPythonPath resolves the interpreter to use for a backend, in order:
// an explicit customPath (if set), a virtualenv's bin/python3 under envDir
// (if it exists), then whatever python3 is on PATH.
func FindPythonPath(customPath, envDir string) (string, error) {
	if customPath != "" {
		if _, err := exec.LookPath(customPath); err == nil {
			return customPath, nil
		}
		if _, err := filepath.Abs(customPath); err == nil {
			return customPath, nil
		}
	}

	if envDir != "" {
		candidate := filepath.Join(envDir, "bin", "python3")
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath("python3"); err == nil {
		return path, nil
	}

	return "", ErrPythonNotFound
}

// NewPythonCmd builds an *exec.Cmd invoking pythonPath with args, bound to
// ctx so the process is killed if ctx is cancelled. Callers are responsible
// for wiring Stdin/Stdout/Stderr and calling Run/Start.
func NewPythonCmd(ctx context.Context, pythonPath string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, pythonPath, args...)
}

// Runner abstracts process execution so backends can be tested without a
// real Python environment.
type Runner interface {
	// Run executes a Python entry point with args and returns its stdout.
	// A non-nil error wraps stderr where available.
	Run(ctx context.Context, args []string) ([]byte, error)
}

// ExecRunner is the production Runner, invoking a real Python interpreter.
// EntryPoint is a space-separated module invocation such as
// "-m asr_backends.funasr_entry"; it is split into discrete argv entries
// placed after PythonPath and ahead of the call's args, since exec does not
// go through a shell. When Log is
// set, the subprocess's stderr lines (model download progress, warnings,
// tracebacks) are forwarded to it as they arrive.
type ExecRunner struct {
	PythonPath string
	EntryPoint string
	Log        *slog.Logger
}

// Run implements Runner by shelling out to PythonPath EntryPoint args...
// Stdout is the result payload and is returned; stderr is buffered for the
// error message and, when Log is set, also streamed into the service log.
func (r ExecRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	argv := append(strings.Fields(r.EntryPoint), args...)
	cmd := NewPythonCmd(ctx, r.PythonPath, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.Log != nil {
		w := logging.NewWriter(r.Log)
		defer w.Close()
		cmd.Stderr = io.MultiWriter(&stderr, w)
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
