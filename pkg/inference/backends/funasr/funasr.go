// Package funasr wraps a FunASR-based Python entry point as an
// inference.Backend. The actual model weights and inference code are an
// external Python process; this package only manages its lifecycle and
// translates its output into the shared Result shape.
package funasr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/austery/asr-runner/pkg/inference"
	"github.com/austery/asr-runner/pkg/inference/backends"
)

// wireResult is the JSON shape the Python entry point prints to stdout.
type wireResult struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	Segments []struct {
		ID      int    `json:"id"`
		Speaker string `json:"speaker"`
		StartMS int64  `json:"start_ms"`
		EndMS   int64  `json:"end_ms"`
		Text    string `json:"text"`
	} `json:"segments"`
}

// Backend is a FunASR-backed inference.Backend. The zero value is not
// usable; construct with New.
type Backend struct {
	modelID string
	runner  backends.Runner
	loaded  bool
	caps    inference.Capabilities
}

// New constructs a funasr Backend for modelID using runner to invoke the
// underlying Python process. caps describes what this particular model id
// can produce (diarization, timestamps, and so on).
func New(modelID string, runner backends.Runner, caps inference.Capabilities) *Backend {
	return &Backend{modelID: modelID, runner: runner, caps: caps}
}

func (b *Backend) Load(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	if _, err := b.runner.Run(ctx, []string{"load", b.modelID}); err != nil {
		return fmt.Errorf("funasr: load %s: %w", b.modelID, err)
	}
	b.loaded = true
	return nil
}

func (b *Backend) Release(ctx context.Context) error {
	if !b.loaded {
		return nil
	}
	if _, err := b.runner.Run(ctx, []string{"release", b.modelID}); err != nil {
		return fmt.Errorf("funasr: release %s: %w", b.modelID, err)
	}
	b.loaded = false
	return nil
}

func (b *Backend) Transcribe(ctx context.Context, path string, opts inference.Options) (inference.Result, error) {
	if !b.loaded {
		return inference.Result{}, fmt.Errorf("funasr: transcribe called before load")
	}

	args := []string{"transcribe", b.modelID, path, opts.Language, strconv.FormatBool(opts.WithTimestamp)}
	out, err := b.runner.Run(ctx, args)
	if err != nil {
		return inference.Result{}, fmt.Errorf("funasr: transcribe: %w", err)
	}

	var wire wireResult
	if err := json.Unmarshal(out, &wire); err != nil {
		return inference.Result{}, fmt.Errorf("funasr: decode result: %w", err)
	}

	result := inference.Result{
		Text:     wire.Text,
		Duration: wire.Duration,
		Language: wire.Language,
	}
	for _, s := range wire.Segments {
		result.Segments = append(result.Segments, inference.Segment{
			ID: s.ID, Speaker: s.Speaker, StartMS: s.StartMS, EndMS: s.EndMS, Text: s.Text,
		})
	}
	return result, nil
}

func (b *Backend) Capabilities() inference.Capabilities {
	return b.caps
}
