package inference

import "context"

// Segment is a single timed span of a transcription result.
type Segment struct {
	ID      int
	Speaker string // empty when the backend does not diarize
	StartMS int64
	EndMS   int64
	Text    string
}

// Options carries the per-request parameters a Backend needs to produce a
// transcription: the language hint and whether to request per-segment timing.
type Options struct {
	Language      string
	WithTimestamp bool
}

// Result is what a Backend produces for a single Transcribe call.
type Result struct {
	Text     string
	Segments []Segment // nil when the backend has no segment-level timing
	Duration float64   // seconds; zero means "unknown, caller should fall back"
	Language string
}

// Backend is the polymorphic contract every inference engine implements.
// The scheduler calls exactly one of {Load, Release, Transcribe} on a given
// instance at a time; implementations need not be internally thread-safe.
type Backend interface {
	// Load prepares the backend for inference. Calling Load on an already
	// loaded backend is a no-op.
	Load(ctx context.Context) error

	// Transcribe runs inference against the audio file at path. Calling
	// Transcribe before Load succeeds is an error.
	Transcribe(ctx context.Context, path string, opts Options) (Result, error)

	// Release frees any resources acquired by Load. Calling Release on an
	// unloaded backend is a no-op.
	Release(ctx context.Context) error

	// Capabilities reports what this backend instance can produce. Safe to
	// call at any point in the lifecycle; unloaded backends report the
	// capabilities they will have once loaded.
	Capabilities() Capabilities
}
