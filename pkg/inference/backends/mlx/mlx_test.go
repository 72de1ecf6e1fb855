package mlx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austery/asr-runner/pkg/inference"
)

type fakeRunner struct {
	calls [][]string
	out   []byte
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	r.calls = append(r.calls, args)
	return r.out, r.err
}

func TestBackend_LoadIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	b := New("mlx-community/Qwen3-ASR-1.7B-8bit", runner, inference.Capabilities{Timestamp: true})

	require.NoError(t, b.Load(context.Background()))
	require.NoError(t, b.Load(context.Background()))
	assert.Len(t, runner.calls, 1)
}

func TestBackend_ReleaseBeforeLoadIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	b := New("mlx-community/Qwen3-ASR-1.7B-8bit", runner, inference.Capabilities{})
	require.NoError(t, b.Release(context.Background()))
	assert.Empty(t, runner.calls)
}

func TestBackend_TranscribeBeforeLoadErrors(t *testing.T) {
	runner := &fakeRunner{}
	b := New("mlx-community/Qwen3-ASR-1.7B-8bit", runner, inference.Capabilities{})
	_, err := b.Transcribe(context.Background(), "/tmp/clip.wav", inference.Options{})
	require.Error(t, err)
}

func TestBackend_TranscribeDecodesWireResult(t *testing.T) {
	wire := `{"text":"hello","duration":0.8,"language":"en","segments":[{"id":0,"start_ms":0,"end_ms":800,"text":"hello"}]}`
	runner := &fakeRunner{out: []byte(wire)}
	b := New("mlx-community/Qwen3-ASR-1.7B-8bit", runner, inference.Capabilities{Timestamp: true})
	require.NoError(t, b.Load(context.Background()))

	result, err := b.Transcribe(context.Background(), "/tmp/clip.wav", inference.Options{Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, "en", result.Language)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, "", result.Segments[0].Speaker, "mlx backends never diarize")
}

func TestBackend_TranscribeRunnerErrorWraps(t *testing.T) {
	runner := &fakeRunner{}
	b := New("mlx-community/parakeet-tdt-0.6b-v2", runner, inference.Capabilities{})
	require.NoError(t, b.Load(context.Background()))
	runner.err = errors.New("out of memory")

	_, err := b.Transcribe(context.Background(), "/tmp/clip.wav", inference.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestBackend_Capabilities(t *testing.T) {
	caps := inference.Capabilities{Timestamp: true}
	b := New("mlx-community/parakeet-tdt-0.6b-v2", &fakeRunner{}, caps)
	assert.Equal(t, caps, b.Capabilities())
}
