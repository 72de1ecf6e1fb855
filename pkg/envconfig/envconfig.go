package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/austery/asr-runner/pkg/logging"
)

// Var returns an environment variable stripped of leading/trailing quotes and spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// String returns a lazy string accessor for the given environment variable.
func String(key string) func() string {
	return func() string {
		return Var(key)
	}
}

// StringWithDefault returns a lazy string accessor that falls back to defaultValue
// when the variable is unset or empty.
func StringWithDefault(key, defaultValue string) func() string {
	return func() string {
		if s := Var(key); s != "" {
			return s
		}
		return defaultValue
	}
}

// IntWithDefault returns a lazy int accessor that falls back to defaultValue when
// the variable is unset or unparsable.
func IntWithDefault(key string, defaultValue int) func() int {
	return func() int {
		s := Var(key)
		if s == "" {
			return defaultValue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return defaultValue
		}
		return n
	}
}

// BoolWithDefault returns a lazy bool accessor for the given environment variable,
// allowing a caller-specified default. If the variable is set but cannot be parsed
// as a bool, the defaultValue is returned.
func BoolWithDefault(key string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(key); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return defaultValue
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a lazy bool accessor that defaults to false when the variable is unset.
func Bool(key string) func() bool {
	withDefault := BoolWithDefault(key)
	return func() bool {
		return withDefault(false)
	}
}

// LogLevel reads LOG_LEVEL and returns the corresponding slog.Level.
func LogLevel() slog.Level {
	return logging.ParseLevel(Var("LOG_LEVEL"))
}

// Host returns the HTTP bind host. Configured via HOST; defaults to 0.0.0.0.
var Host = StringWithDefault("HOST", "0.0.0.0")

// Port returns the HTTP bind port. Configured via PORT; defaults to 8080.
var Port = StringWithDefault("PORT", "8080")

// MaxQueueSize returns the scheduler's bounded FIFO capacity.
// Configured via MAX_QUEUE_SIZE; defaults to 50.
var MaxQueueSize = IntWithDefault("MAX_QUEUE_SIZE", 50)

// MaxUploadSizeMB returns the admission layer's upload size limit in MiB.
// Configured via MAX_UPLOAD_SIZE_MB; defaults to 200.
var MaxUploadSizeMB = IntWithDefault("MAX_UPLOAD_SIZE_MB", 200)

// EngineType returns the startup backend kind ("funasr" or "mlx").
// Configured via ENGINE_TYPE; defaults to "funasr".
var EngineType = StringWithDefault("ENGINE_TYPE", "funasr")

// ModelID returns the startup model identifier or alias.
// Configured via MODEL_ID; defaults to "sensevoice-small".
var ModelID = StringWithDefault("MODEL_ID", "sensevoice-small")

// FunASRPythonPath returns an optional interpreter override for the FunASR backend.
// Configured via FUNASR_PYTHON_PATH.
func FunASRPythonPath() string {
	return Var("FUNASR_PYTHON_PATH")
}

// MLXPythonPath returns an optional interpreter override for the MLX backend.
// Configured via MLX_PYTHON_PATH.
func MLXPythonPath() string {
	return Var("MLX_PYTHON_PATH")
}

// AllowedOrigins returns the CORS allow-list read from ALLOWED_ORIGINS. A bare
// "*" is returned as a single-element slice meaning "allow any origin"; otherwise
// the comma-separated list is split and trimmed.
func AllowedOrigins() (origins []string) {
	s := Var("ALLOWED_ORIGINS")
	if s == "" {
		return nil
	}
	if s == "*" {
		return []string{"*"}
	}
	for _, o := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// DisableMetrics is true when DISABLE_METRICS is set to a truthy value (e.g. "1").
var DisableMetrics = Bool("DISABLE_METRICS")

// EnvVar describes a single environment variable with its current value
// and a human-readable description.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns a map of all recognised environment variables with their
// current values and descriptions. Used for startup config logging and
// introspection.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"HOST":               {"HOST", Host(), "HTTP bind host (default: 0.0.0.0)"},
		"PORT":               {"PORT", Port(), "HTTP bind port (default: 8080)"},
		"MAX_QUEUE_SIZE":     {"MAX_QUEUE_SIZE", MaxQueueSize(), "Scheduler FIFO capacity (default: 50)"},
		"MAX_UPLOAD_SIZE_MB": {"MAX_UPLOAD_SIZE_MB", MaxUploadSizeMB(), "Admission upload size limit in MiB (default: 200)"},
		"ALLOWED_ORIGINS":    {"ALLOWED_ORIGINS", AllowedOrigins(), "CORS allow-list; '*' allows any origin"},
		"ENGINE_TYPE":        {"ENGINE_TYPE", EngineType(), "Startup backend kind: funasr or mlx"},
		"MODEL_ID":           {"MODEL_ID", ModelID(), "Startup model id or alias"},
		"LOG_LEVEL":          {"LOG_LEVEL", LogLevel(), "Log verbosity: debug, info, warn, error (default: info)"},
		"DISABLE_METRICS":    {"DISABLE_METRICS", DisableMetrics(), "Disable the /metrics endpoint (any truthy value)"},
		"FUNASR_PYTHON_PATH": {"FUNASR_PYTHON_PATH", FunASRPythonPath(), "Interpreter override for the FunASR backend"},
		"MLX_PYTHON_PATH":    {"MLX_PYTHON_PATH", MLXPythonPath(), "Interpreter override for the MLX backend"},
	}
}
