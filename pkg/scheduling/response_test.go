package scheduling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austery/asr-runner/pkg/inference"
	"github.com/austery/asr-runner/pkg/inference/registry"
)

func TestBuildJSONResponse_DurationFromBackendWhenPresent(t *testing.T) {
	out := Outcome{
		Result: inference.Result{Text: "hi", Duration: 4.2},
		Spec:   registry.ModelSpec{Alias: "paraformer"},
	}
	resp := buildJSONResponse(out, time.Now().Add(-time.Hour), true)
	require.NotNil(t, resp.Duration)
	assert.Equal(t, 4.2, *resp.Duration)
}

func TestBuildJSONResponse_DurationFallsBackToWallClock(t *testing.T) {
	receivedAt := time.Now().Add(-250 * time.Millisecond)
	out := Outcome{Result: inference.Result{Text: "hi", Duration: 0}}
	resp := buildJSONResponse(out, receivedAt, true)
	require.NotNil(t, resp.Duration)
	assert.Greater(t, *resp.Duration, 0.2)
}

func TestBuildJSONResponse_SegmentsOmittedForNonJSONFormat(t *testing.T) {
	out := Outcome{
		Result: inference.Result{
			Text:     "hi",
			Segments: []inference.Segment{{ID: 0, StartMS: 0, EndMS: 100, Text: "hi"}},
		},
	}
	resp := buildJSONResponse(out, time.Now(), false)
	assert.Nil(t, resp.Segments)
}

func TestBuildJSONResponse_ModelAliasAndSpeaker(t *testing.T) {
	out := Outcome{
		Result: inference.Result{
			Text: "hi there",
			Segments: []inference.Segment{
				{ID: 0, Speaker: "Speaker 0", StartMS: 0, EndMS: 500, Text: "hi"},
				{ID: 1, StartMS: 500, EndMS: 900, Text: "there"},
			},
		},
		Spec: registry.ModelSpec{Alias: "sensevoice-small"},
	}
	resp := buildJSONResponse(out, time.Now(), true)
	require.NotNil(t, resp.Model)
	assert.Equal(t, "sensevoice-small", *resp.Model)
	require.Len(t, resp.Segments, 2)
	require.NotNil(t, resp.Segments[0].Speaker)
	assert.Equal(t, "Speaker 0", *resp.Segments[0].Speaker)
	assert.Nil(t, resp.Segments[1].Speaker)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"speaker":"Speaker 0"`)
}

func TestBuildSRT_CueNumberingAndTimestampFormat(t *testing.T) {
	result := inference.Result{
		Segments: []inference.Segment{
			{ID: 0, StartMS: 0, EndMS: 1500, Text: "hello"},
			{ID: 1, StartMS: 61500, EndMS: 63250, Text: "world"},
		},
	}
	srt := buildSRT(result)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,500\nhello\n\n2\n00:01:01,500 --> 00:01:03,250\nworld\n\n", srt)
}

func TestBuildSRT_SpeakerPrefix(t *testing.T) {
	result := inference.Result{
		Segments: []inference.Segment{
			{ID: 0, Speaker: "Speaker 1", StartMS: 0, EndMS: 1000, Text: "hello"},
		},
	}
	srt := buildSRT(result)
	assert.Contains(t, srt, "[Speaker 1]: hello")
}

func TestBuildSRT_EmptyResultIsEmptyString(t *testing.T) {
	assert.Equal(t, "", buildSRT(inference.Result{}))
}
