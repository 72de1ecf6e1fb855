// Package registry resolves user-facing model strings (aliases, model ids,
// or unregistered paths) to ModelSpecs. The built-in table mirrors the five
// models shipped by the original local ASR service's model registry.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/austery/asr-runner/pkg/inference"
)

// EngineType is the closed set of backend kinds a ModelSpec can name.
type EngineType string

const (
	EngineFunASR EngineType = "funasr"
	EngineMLX    EngineType = "mlx"
)

// ModelSpec is an immutable binding from a short alias to a backend-specific
// model id, the engine that serves it, and its declared capabilities.
type ModelSpec struct {
	Alias        string                 `json:"alias"`
	ModelID      string                 `json:"model_id"`
	EngineType   EngineType             `json:"engine_type"`
	Description  string                 `json:"description"`
	Capabilities inference.Capabilities `json:"capabilities"`
}

// passthroughValues are the OpenAI-compatibility placeholders that mean
// "use whatever backend is already loaded" rather than naming a model.
var passthroughValues = map[string]struct{}{
	"whisper-1": {},
	"":          {},
}

var builtins = []ModelSpec{
	{
		Alias:       "paraformer",
		ModelID:     "iic/speech_seaco_paraformer_large_asr_nat-zh-cn-16k-common-vocab8404-pytorch",
		EngineType:  EngineFunASR,
		Description: "Mandarin + speaker diarization (FunASR). Best for multi-speaker podcasts.",
		Capabilities: inference.Capabilities{
			Timestamp: true, Diarization: true, LanguageDetect: true,
		},
	},
	{
		Alias:       "qwen3-asr-mini",
		ModelID:     "mlx-community/Qwen3-ASR-1.7B-4bit",
		EngineType:  EngineMLX,
		Description: "Fast & light Qwen3 ASR (4-bit). Best for single-speaker, low latency.",
		Capabilities: inference.Capabilities{
			Timestamp: true, LanguageDetect: true,
		},
	},
	{
		Alias:       "qwen3-asr",
		ModelID:     "mlx-community/Qwen3-ASR-1.7B-8bit",
		EngineType:  EngineMLX,
		Description: "Qwen3 ASR (8-bit, higher accuracy).",
		Capabilities: inference.Capabilities{
			Timestamp: true, LanguageDetect: true,
		},
	},
	{
		Alias:       "parakeet",
		ModelID:     "mlx-community/parakeet-tdt-0.6b-v2",
		EngineType:  EngineMLX,
		Description: "NVIDIA Parakeet (English only, very fast). Short clips only; known to OOM on files over roughly 5 minutes.",
		Capabilities: inference.Capabilities{
			Timestamp: true,
		},
	},
	{
		Alias:       "sensevoice-small",
		ModelID:     "iic/SenseVoiceSmall",
		EngineType:  EngineFunASR,
		Description: "SenseVoice Small, fastest model (80-85x realtime). Best for bulk speed-first processing, language detection, and emotion tagging. Not recommended where transcription quality on mixed-language or proper nouns matters.",
		Capabilities: inference.Capabilities{
			EmotionTags: true, LanguageDetect: true,
		},
	},
}

// Registry is a process-wide, read-only table of built-in ModelSpecs plus a
// reverse index from model id to alias.
type Registry struct {
	byAlias   map[string]ModelSpec
	byModelID map[string]string
}

// New builds a Registry seeded with the built-in models.
func New() *Registry {
	r := &Registry{
		byAlias:   make(map[string]ModelSpec, len(builtins)),
		byModelID: make(map[string]string, len(builtins)),
	}
	for _, spec := range builtins {
		r.byAlias[spec.Alias] = spec
		r.byModelID[spec.ModelID] = spec.Alias
	}
	return r
}

// IsPassthrough reports whether s names no model at all: nil, empty, or the
// literal "whisper-1" placeholder. Passthrough requests never trigger a swap.
func IsPassthrough(s *string) bool {
	if s == nil {
		return true
	}
	_, ok := passthroughValues[*s]
	return ok
}

// Lookup resolves a user-supplied model string to a ModelSpec, in this order:
// exact alias match, exact model id match, then prefix-based inference for
// unregistered paths. Returns an error naming the unresolved string otherwise.
func (r *Registry) Lookup(model string) (ModelSpec, error) {
	if spec, ok := r.byAlias[model]; ok {
		return spec, nil
	}
	if alias, ok := r.byModelID[model]; ok {
		return r.byAlias[alias], nil
	}

	switch {
	case strings.HasPrefix(model, "mlx-community/"):
		return inferredSpec(model, EngineMLX), nil
	case strings.HasPrefix(model, "iic/"), strings.Contains(strings.ToLower(model), "funasr"):
		return inferredSpec(model, EngineFunASR), nil
	}

	return ModelSpec{}, fmt.Errorf(
		"unknown model: %q. Use GET /v1/models to see built-in models, or pass a full path prefixed with 'mlx-community/' or 'iic/'", model)
}

func inferredSpec(model string, engine EngineType) ModelSpec {
	return ModelSpec{
		Alias:       model,
		ModelID:     model,
		EngineType:  engine,
		Description: "Custom model (capabilities resolved at load time).",
	}
}

// AliasFor returns the alias a model id is registered under, if any.
func (r *Registry) AliasFor(modelID string) (string, bool) {
	alias, ok := r.byModelID[modelID]
	return alias, ok
}

// ListAll returns every built-in ModelSpec, ordered by alias.
func (r *Registry) ListAll() []ModelSpec {
	out := make([]ModelSpec, 0, len(r.byAlias))
	for _, spec := range r.byAlias {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}
