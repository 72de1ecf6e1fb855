package funasr

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austery/asr-runner/pkg/inference"
)

// fakeRunner is a backends.Runner test double that records the argv it was
// invoked with and returns scripted output or error.
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
	b := New("iic/paraformer", runner, inference.Capabilities{Timestamp: true})

	require.NoError(t, b.Load(context.Background()))
	require.NoError(t, b.Load(context.Background()))

	assert.Len(t, runner.calls, 1, "a second Load on an already-loaded backend must not re-invoke the process")
}

func TestBackend_ReleaseBeforeLoadIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	b := New("iic/paraformer", runner, inference.Capabilities{})

	require.NoError(t, b.Release(context.Background()))
	assert.Empty(t, runner.calls)
}

func TestBackend_TranscribeBeforeLoadErrors(t *testing.T) {
	runner := &fakeRunner{}
	b := New("iic/paraformer", runner, inference.Capabilities{})

	_, err := b.Transcribe(context.Background(), "/tmp/clip.wav", inference.Options{})
	require.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestBackend_TranscribeDecodesWireResult(t *testing.T) {
	wire := `{"text":"hello world","duration":1.25,"language":"zh","segments":[` +
		`{"id":0,"speaker":"Speaker 0","start_ms":0,"end_ms":500,"text":"hello"},` +
		`{"id":1,"speaker":"Speaker 1","start_ms":500,"end_ms":1250,"text":"world"}]}`
	runner := &fakeRunner{out: []byte(wire)}
	b := New("iic/paraformer", runner, inference.Capabilities{Diarization: true})

	require.NoError(t, b.Load(context.Background()))

	result, err := b.Transcribe(context.Background(), "/tmp/clip.wav", inference.Options{Language: "zh", WithTimestamp: true})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, 1.25, result.Duration)
	assert.Equal(t, "zh", result.Language)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, "Speaker 0", result.Segments[0].Speaker)
	assert.Equal(t, "Speaker 1", result.Segments[1].Speaker)

	require.Len(t, runner.calls, 2) // load, transcribe
	assert.Equal(t, []string{"transcribe", "iic/paraformer", "/tmp/clip.wav", "zh", "true"}, runner.calls[1])
}

func TestBackend_TranscribeRunnerErrorWraps(t *testing.T) {
	runner := &fakeRunner{}
	b := New("iic/paraformer", runner, inference.Capabilities{})
	require.NoError(t, b.Load(context.Background()))
	runner.err = errors.New("model crashed")

	_, err := b.Transcribe(context.Background(), "/tmp/clip.wav", inference.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestBackend_TranscribeMalformedJSONErrors(t *testing.T) {
	runner := &fakeRunner{out: []byte("not json")}
	b := New("iic/paraformer", runner, inference.Capabilities{})
	require.NoError(t, b.Load(context.Background()))

	_, err := b.Transcribe(context.Background(), "/tmp/clip.wav", inference.Options{})
	require.Error(t, err)
	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestBackend_Capabilities(t *testing.T) {
	caps := inference.Capabilities{Timestamp: true, Diarization: true, LanguageDetect: true}
	b := New("iic/paraformer", &fakeRunner{}, caps)
	assert.Equal(t, caps, b.Capabilities())
}
