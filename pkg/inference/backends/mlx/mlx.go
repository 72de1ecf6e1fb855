// Package mlx wraps an MLX-Audio-based Python entry point as an
// inference.Backend. MLX backends are Apple Silicon only in practice; the
// actual model weights and inference code are an external Python process.
package mlx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/austery/asr-runner/pkg/inference"
	"github.com/austery/asr-runner/pkg/inference/backends"
)

type wireResult struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	Segments []struct {
		ID      int    `json:"id"`
		StartMS int64  `json:"start_ms"`
		EndMS   int64  `json:"end_ms"`
		Text    string `json:"text"`
	} `json:"segments"`
}

// Backend is an MLX-backed inference.Backend. The zero value is not usable;
// construct with New.
type Backend struct {
	modelID string
	runner  backends.Runner
	loaded  bool
	caps    inference.Capabilities
}

// New constructs an mlx Backend for modelID using runner to invoke the
// underlying Python process.
func New(modelID string, runner backends.Runner, caps inference.Capabilities) *Backend {
	return &Backend{modelID: modelID, runner: runner, caps: caps}
}

func (b *Backend) Load(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	if _, err := b.runner.Run(ctx, []string{"load", b.modelID}); err != nil {
		return fmt.Errorf("mlx: load %s: %w", b.modelID, err)
	}
	b.loaded = true
	return nil
}

func (b *Backend) Release(ctx context.Context) error {
	if !b.loaded {
		return nil
	}
	if _, err := b.runner.Run(ctx, []string{"release", b.modelID}); err != nil {
		return fmt.Errorf("mlx: release %s: %w", b.modelID, err)
	}
	b.loaded = false
	return nil
}

func (b *Backend) Transcribe(ctx context.Context, path string, opts inference.Options) (inference.Result, error) {
	if !b.loaded {
		return inference.Result{}, fmt.Errorf("mlx: transcribe called before load")
	}

	args := []string{"transcribe", b.modelID, path, opts.Language, strconv.FormatBool(opts.WithTimestamp)}
	out, err := b.runner.Run(ctx, args)
	if err != nil {
		return inference.Result{}, fmt.Errorf("mlx: transcribe: %w", err)
	}

	var wire wireResult
	if err := json.Unmarshal(out, &wire); err != nil {
		return inference.Result{}, fmt.Errorf("mlx: decode result: %w", err)
	}

	result := inference.Result{Text: wire.Text, Duration: wire.Duration, Language: wire.Language}
	for _, s := range wire.Segments {
		result.Segments = append(result.Segments, inference.Segment{
			ID: s.ID, StartMS: s.StartMS, EndMS: s.EndMS, Text: s.Text,
		})
	}
	return result, nil
}

func (b *Backend) Capabilities() inference.Capabilities {
	return b.caps
}
