package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/austery/asr-runner/pkg/inference"
)

// jsonSegment and jsonResponse mirror the documented JSON response schema.
type jsonSegment struct {
	ID      int     `json:"id"`
	Speaker *string `json:"speaker"`
	Start   int64   `json:"start"`
	End     int64   `json:"end"`
	Text    string  `json:"text"`
}

type jsonResponse struct {
	Text     string        `json:"text"`
	Duration *float64      `json:"duration"`
	Language *string       `json:"language"`
	Model    *string       `json:"model"`
	Segments []jsonSegment `json:"segments"`
}

// buildJSONResponse renders the JSON/txt response body for a successful
// Outcome. receivedAt is used to fall back to wall-clock duration when the
// backend reports none.
func buildJSONResponse(out Outcome, receivedAt time.Time, includeSegments bool) jsonResponse {
	resp := jsonResponse{Text: out.Result.Text}

	duration := out.Result.Duration
	if duration == 0 {
		duration = time.Since(receivedAt).Seconds()
	}
	resp.Duration = &duration

	if out.Result.Language != "" {
		lang := out.Result.Language
		resp.Language = &lang
	}
	if out.Spec.Alias != "" {
		model := out.Spec.Alias
		resp.Model = &model
	}

	if includeSegments && len(out.Result.Segments) > 0 {
		for _, seg := range out.Result.Segments {
			var speaker *string
			if seg.Speaker != "" {
				s := seg.Speaker
				speaker = &s
			}
			resp.Segments = append(resp.Segments, jsonSegment{
				ID: seg.ID, Speaker: speaker, Start: seg.StartMS, End: seg.EndMS, Text: seg.Text,
			})
		}
	}

	return resp
}

// buildSRT renders the SRT cue document for a successful Outcome with
// segment timing. Cues are 1-indexed; speaker labels are prefixed when the
// backend diarized the result.
func buildSRT(result inference.Result) string {
	var b strings.Builder
	for i, seg := range result.Segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTimestamp(seg.StartMS), srtTimestamp(seg.EndMS))
		text := seg.Text
		if seg.Speaker != "" {
			text = fmt.Sprintf("[%s]: %s", seg.Speaker, text)
		}
		fmt.Fprintf(&b, "%s\n\n", text)
	}
	return b.String()
}

func srtTimestamp(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	millis := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
