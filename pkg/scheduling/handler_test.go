package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austery/asr-runner/pkg/inference/registry"
)

// multipartBody builds a multipart request body with a single audio file
// part plus arbitrary form fields.
func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", contentType)
	part, err := w.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func newTestServer(t *testing.T, s *Scheduler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(testLogger(), s, registry.New()).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postUpload(t *testing.T, server *httptest.Server, body io.Reader, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/v1/audio/transcriptions", contentType, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_TranscribeHappyPath(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 10)
	require.NoError(t, s.Start(context.Background(), specA))
	t.Cleanup(s.Stop)
	server := newTestServer(t, s)

	body, contentType := multipartBody(t, "clip.wav", "audio/wav",
		bytes.Repeat([]byte{0}, 80<<10), map[string]string{"output_format": "json"})
	resp := postUpload(t, server, body, contentType)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var decoded jsonResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "hello", decoded.Text)
	require.NotNil(t, decoded.Model)
	assert.Equal(t, specA.Alias, *decoded.Model)
	require.Len(t, decoded.Segments, 1)
	require.NotNil(t, decoded.Segments[0].Speaker)
	assert.Equal(t, "Speaker 0", *decoded.Segments[0].Speaker)
	assert.Equal(t, int64(500), decoded.Segments[0].End)
}

func TestHandler_TranscribeSRTBody(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 10)
	require.NoError(t, s.Start(context.Background(), specA))
	t.Cleanup(s.Stop)
	server := newTestServer(t, s)

	// The legacy vtt value maps to srt output.
	body, contentType := multipartBody(t, "clip.wav", "audio/wav", []byte("RIFF"),
		map[string]string{"response_format": "vtt", "model": "paraformer"})
	resp := postUpload(t, server, body, contentType)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "00:00:00,000 --> 00:00:00,500")
	assert.Contains(t, string(raw), "[Speaker 0]: hello")
}

func TestHandler_UnknownModelReturns400(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 10)
	server := newTestServer(t, s)

	body, contentType := multipartBody(t, "clip.wav", "audio/wav", []byte("RIFF"),
		map[string]string{"model": "no-such-model"})
	resp := postUpload(t, server, body, contentType)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Contains(t, decoded["error"], "no-such-model")
	assert.NotEmpty(t, decoded["request_id"])
}

func TestHandler_CapabilityRejectionReturns400(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 10)
	server := newTestServer(t, s)

	// sensevoice-small has no timestamp capability, so srt is infeasible.
	body, contentType := multipartBody(t, "clip.wav", "audio/wav", []byte("RIFF"),
		map[string]string{"model": "sensevoice-small", "output_format": "srt"})
	resp := postUpload(t, server, body, contentType)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Contains(t, decoded["error"], "timestamp")
}

func TestHandler_QueueFullReturns503(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 1)
	s.queue <- &Job{resultCh: make(chan Outcome, 1)} // unstarted worker, queue stays full
	server := newTestServer(t, s)

	body, contentType := multipartBody(t, "clip.wav", "audio/wav", []byte("RIFF"), nil)
	resp := postUpload(t, server, body, contentType)

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Contains(t, decoded["error"], "Queue")
}

func TestHandler_SwapFailureReturns500WithoutDetails(t *testing.T) {
	h := newHarness()
	h.backend(specA.Alias).releaseErr = errors.New("mmap: device busy at 0x7f3a")

	s := New(testLogger(), registry.New(), h.factory, 10)
	require.NoError(t, s.Start(context.Background(), specA))
	t.Cleanup(s.Stop)
	server := newTestServer(t, s)

	body, contentType := multipartBody(t, "clip.wav", "audio/wav", []byte("RIFF"),
		map[string]string{"model": "paraformer"})
	resp := postUpload(t, server, body, contentType)

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.NotEmpty(t, decoded["request_id"])
	assert.NotContains(t, decoded["error"], "0x7f3a", "internal detail must never reach the client")
}

func TestHandler_MissingFileFieldReturns400(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 10)
	server := newTestServer(t, s)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("model", "paraformer"))
	require.NoError(t, w.Close())

	resp := postUpload(t, server, &buf, w.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ModelsListsRegistryAndCurrentAlias(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 10)
	require.NoError(t, s.Start(context.Background(), specA))
	t.Cleanup(s.Stop)
	server := newTestServer(t, s)

	resp, err := http.Get(server.URL + "/v1/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Models  []registry.ModelSpec `json:"models"`
		Current string               `json:"current"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, specA.Alias, decoded.Current)
	require.Len(t, decoded.Models, len(registry.New().ListAll()))
	for i := 1; i < len(decoded.Models); i++ {
		assert.Less(t, decoded.Models[i-1].Alias, decoded.Models[i].Alias)
	}
}

func TestHandler_CurrentModelSnapshot(t *testing.T) {
	h := newHarness()
	s := New(testLogger(), registry.New(), h.factory, 7)
	require.NoError(t, s.Start(context.Background(), specA))
	t.Cleanup(s.Stop)
	server := newTestServer(t, s)

	resp, err := http.Get(server.URL + "/v1/models/current")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, specA.Alias, decoded["alias"])
	assert.Equal(t, specA.ModelID, decoded["model_id"])
	assert.Equal(t, float64(7), decoded["queue_cap"])
	assert.Equal(t, false, decoded["degraded"])
}

func TestHandler_HealthIsLivenessOnlyWhileDegraded(t *testing.T) {
	h := newHarness()
	h.backend(specA.Alias).loadErrs = []error{nil, errors.New("restore failed")}
	h.backend("paraformer").loadErrs = []error{errors.New("load failed")}

	s := New(testLogger(), registry.New(), h.factory, 10)
	require.NoError(t, s.Start(context.Background(), specA))
	t.Cleanup(s.Stop)
	server := newTestServer(t, s)

	// Drive the scheduler into the sticky degraded state.
	out := submitAndWait(t, s, &specB)
	require.Error(t, out.Err)
	require.True(t, s.Degraded())

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health reports liveness, not readiness")

	body, contentType := multipartBody(t, "clip.wav", "audio/wav", []byte("RIFF"), nil)
	uploadResp := postUpload(t, server, body, contentType)
	assert.Equal(t, http.StatusInternalServerError, uploadResp.StatusCode)
	raw, err := io.ReadAll(uploadResp.Body)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(string(raw)), "degraded")
}
