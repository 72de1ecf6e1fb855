package scheduling

import (
	"time"

	"github.com/austery/asr-runner/pkg/inference"
	"github.com/austery/asr-runner/pkg/inference/registry"
)

// OutputFormat is the closed set of response shapes a Job can request.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatTXT  OutputFormat = "txt"
	FormatSRT  OutputFormat = "srt"
)

// Outcome is what the worker publishes to a Job's result channel: either a
// Result plus the spec actually used, or an error. Never both, never
// neither.
type Outcome struct {
	Result     inference.Result
	Spec       registry.ModelSpec
	Format     OutputFormat
	ReceivedAt time.Time
	Err        error
}

// Job is created by the admission layer and consumed by the scheduler's
// single worker goroutine.
type Job struct {
	UID        string
	ScratchDir string
	FilePath   string

	Options      inference.Options
	Format       OutputFormat
	Requested    *registry.ModelSpec // nil means "use whatever is currently loaded"

	ReceivedAt time.Time
	resultCh   chan Outcome
}

func newJob(uid, scratchDir, filePath string, opts inference.Options, format OutputFormat, requested *registry.ModelSpec) *Job {
	return &Job{
		UID:        uid,
		ScratchDir: scratchDir,
		FilePath:   filePath,
		Options:    opts,
		Format:     format,
		Requested:  requested,
		ReceivedAt: time.Now(),
		resultCh:   make(chan Outcome, 1),
	}
}
