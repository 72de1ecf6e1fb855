package scheduling

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/austery/asr-runner/pkg/inference"
	"github.com/austery/asr-runner/pkg/inference/registry"
)

var allowedAudioTypes = map[string]struct{}{
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/mpeg":  {},
	"audio/mp3":   {},
	"audio/mp4":   {},
	"audio/x-m4a": {},
	"audio/flac":  {},
	"audio/ogg":   {},
	"audio/webm":  {},
}

var allowedExtensions = map[string]struct{}{
	".wav": {}, ".mp3": {}, ".m4a": {}, ".mp4": {}, ".flac": {}, ".ogg": {}, ".webm": {},
}

// Request is the admission layer's view of an incoming transcription
// request, already parsed from the multipart form.
type Request struct {
	File          multipart.File
	FileHeader    *multipart.FileHeader
	Model         *string // nil when the field was absent
	Language      string
	OutputFormat  string // modern field
	ResponseFmt   string // legacy field, takes precedence when both are set
	WithTimestamp bool
	MaxUploadMB   int
}

// Admit runs the full admission sequence (type check, size check, model
// resolution, format normalisation, capability gating, scratch
// materialisation, enqueue) and blocks until the worker publishes an
// Outcome, or returns an admission-local error before ever enqueuing.
func (s *Scheduler) Admit(req Request) (Outcome, error) {
	if err := checkContentType(req.FileHeader); err != nil {
		return Outcome{}, err
	}

	size, err := streamedSize(req.File)
	if err != nil {
		return Outcome{}, newError(KindBackendInternal, "failed to inspect upload", err)
	}
	maxBytes := int64(req.MaxUploadMB) * 1024 * 1024
	if size > maxBytes {
		return Outcome{}, newError(KindPayloadTooLarge, fmt.Sprintf("upload exceeds %d MiB limit", req.MaxUploadMB), nil)
	}

	var requested *registry.ModelSpec
	if !registry.IsPassthrough(req.Model) {
		spec, err := s.registry.Lookup(*req.Model)
		if err != nil {
			return Outcome{}, newError(KindUnknownModel, err.Error(), nil)
		}
		requested = &spec
	}

	format, formatErr := normalizeFormat(req.OutputFormat, req.ResponseFmt)
	if formatErr != nil {
		return Outcome{}, formatErr
	}

	effectiveCaps := s.CurrentSpec().Capabilities
	if requested != nil {
		effectiveCaps = requested.Capabilities
	}
	if format == FormatSRT && !effectiveCaps.Timestamp {
		return Outcome{}, newError(KindInfeasible, "srt output requires a model with timestamp support", nil)
	}
	if req.WithTimestamp && !effectiveCaps.Timestamp {
		return Outcome{}, newError(KindInfeasible, "timestamps requested but the resolved model does not support them", nil)
	}

	// Reject a full queue before staging anything to disk. The submit below
	// re-checks non-blockingly, so a race between the two checks still ends
	// in rejection, just with the scratch directory cleaned up.
	if s.QueueDepth() >= s.QueueCapacity() {
		return Outcome{}, newError(KindServiceBusy, "Queue is full, try again shortly", nil)
	}

	scratchDir, filePath, err := materialize(req.File, req.FileHeader.Filename)
	if err != nil {
		return Outcome{}, newError(KindBackendInternal, "failed to stage upload", err)
	}

	opts := inference.Options{Language: req.Language, WithTimestamp: req.WithTimestamp}
	job := newJob(uuid.NewString()[:8], scratchDir, filePath, opts, format, requested)

	resultCh, err := s.submit(job)
	if err != nil {
		removeScratch(scratchDir)
		return Outcome{}, err
	}

	return <-resultCh, nil
}

func checkContentType(header *multipart.FileHeader) *Error {
	declared := header.Header.Get("Content-Type")
	if _, ok := allowedAudioTypes[declared]; ok {
		return nil
	}
	if declared == "" || declared == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if _, ok := allowedExtensions[ext]; ok {
			return nil
		}
	}
	return newError(KindUnsupportedMediaType, fmt.Sprintf("unsupported media type %q", declared), nil)
}

// streamedSize determines the upload's byte length via stream positioning
// rather than reading the whole file into memory.
func streamedSize(f multipart.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}

func normalizeFormat(outputFormat, responseFormat string) (OutputFormat, *Error) {
	if responseFormat != "" {
		switch responseFormat {
		case "verbose_json", "json":
			return FormatJSON, nil
		case "text", "txt":
			return FormatTXT, nil
		case "vtt", "srt":
			return FormatSRT, nil
		default:
			return "", newError(KindInvalidRequest, fmt.Sprintf("unrecognized response_format %q", responseFormat), nil)
		}
	}
	switch outputFormat {
	case "", "json":
		return FormatJSON, nil
	case "txt":
		return FormatTXT, nil
	case "srt":
		return FormatSRT, nil
	default:
		return "", newError(KindInvalidRequest, fmt.Sprintf("unrecognized output_format %q", outputFormat), nil)
	}
}

func materialize(src multipart.File, originalName string) (scratchDir, filePath string, err error) {
	scratchDir, err = os.MkdirTemp("", "asr-job-*")
	if err != nil {
		return "", "", err
	}

	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".wav"
	}
	filePath = filepath.Join(scratchDir, "original"+ext)

	dst, err := os.Create(filePath)
	if err != nil {
		os.RemoveAll(scratchDir)
		return "", "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.RemoveAll(scratchDir)
		return "", "", err
	}

	return scratchDir, filePath, nil
}

func removeScratch(dir string) {
	if dir != "" {
		os.RemoveAll(dir)
	}
}

// cleanupScratch is the worker-side counterpart to removeScratch: it always
// runs, on every termination path of Job processing, so scratch directories
// never outlive the Job that created them.
func cleanupScratch(log interface{ Warn(string, ...any) }, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Warn("failed to remove scratch directory", "dir", dir, "err", err)
	}
}

// ParseWithTimestamp interprets the with_timestamp form field.
func ParseWithTimestamp(raw string) bool {
	b, _ := strconv.ParseBool(raw)
	return b
}
