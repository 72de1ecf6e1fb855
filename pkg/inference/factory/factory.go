// Package factory instantiates a concrete inference.Backend from a resolved
// ModelSpec, selecting the Python interpreter and entry point appropriate to
// the spec's engine type.
package factory

import (
	"fmt"
	"log/slog"

	"github.com/austery/asr-runner/pkg/envconfig"
	"github.com/austery/asr-runner/pkg/inference"
	"github.com/austery/asr-runner/pkg/inference/backends"
	"github.com/austery/asr-runner/pkg/inference/backends/funasr"
	"github.com/austery/asr-runner/pkg/inference/backends/mlx"
	"github.com/austery/asr-runner/pkg/inference/registry"
	"github.com/austery/asr-runner/pkg/logging"
)

// entryPoints names the bundled Python module each backend invokes. Both
// live alongside the service; only the interpreter path is configurable.
const (
	funasrEntryPoint = "-m asr_backends.funasr_entry"
	mlxEntryPoint    = "-m asr_backends.mlx_entry"
)

// New returns a backend constructor bound to log. Each backend's subprocess
// runner forwards the Python entry point's stderr into log, scoped to the
// engine it belongs to.
func New(log *slog.Logger) func(registry.ModelSpec) (inference.Backend, error) {
	return func(spec registry.ModelSpec) (inference.Backend, error) {
		switch spec.EngineType {
		case registry.EngineFunASR:
			pythonPath, err := backends.FindPythonPath(envconfig.FunASRPythonPath(), "")
			if err != nil {
				return nil, fmt.Errorf("factory: resolve funasr interpreter: %w", err)
			}
			runner := backends.ExecRunner{
				PythonPath: pythonPath,
				EntryPoint: funasrEntryPoint,
				Log:        logging.WithComponent(log, "funasr"),
			}
			return funasr.New(spec.ModelID, runner, spec.Capabilities), nil
		case registry.EngineMLX:
			pythonPath, err := backends.FindPythonPath(envconfig.MLXPythonPath(), "")
			if err != nil {
				return nil, fmt.Errorf("factory: resolve mlx interpreter: %w", err)
			}
			runner := backends.ExecRunner{
				PythonPath: pythonPath,
				EntryPoint: mlxEntryPoint,
				Log:        logging.WithComponent(log, "mlx"),
			}
			return mlx.New(spec.ModelID, runner, spec.Capabilities), nil
		default:
			return nil, fmt.Errorf("factory: unsupported engine type %q", spec.EngineType)
		}
	}
}
