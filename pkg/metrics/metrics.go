// Package metrics exposes the scheduler's operational state as Prometheus
// text-format output. There is no client_golang registry in this stack;
// gauges are built directly as github.com/prometheus/client_model families
// and serialised with github.com/prometheus/common/expfmt.
package metrics

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Source reports the values this package exposes. The scheduler implements
// this directly so no adapter struct is needed in production.
type Source interface {
	QueueDepth() int
	QueueCapacity() int
	Degraded() bool
	Counters() (processed, failed int64)
	CurrentModelAlias() string
}

// Handler serves /metrics from a Source.
type Handler struct {
	source Source
}

// NewHandler returns an http.Handler exposing src's gauges and counters.
func NewHandler(src Source) *Handler {
	return &Handler{source: src}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	families := []*dto.MetricFamily{
		gaugeFamily("asr_queue_depth", "Current number of jobs waiting in the admission queue.", float64(h.source.QueueDepth())),
		gaugeFamily("asr_queue_capacity", "Configured capacity of the admission queue.", float64(h.source.QueueCapacity())),
		gaugeFamily("asr_degraded", "1 if the scheduler has entered the sticky degraded state.", boolToFloat(h.source.Degraded())),
		labeledGaugeFamily("asr_current_model", "Constant gauge labeled with the currently loaded model alias.", "model", h.source.CurrentModelAlias()),
	}

	processed, failed := h.source.Counters()
	families = append(families,
		counterFamily("asr_jobs_processed_total", "Total jobs completed successfully.", float64(processed)),
		counterFamily("asr_jobs_failed_total", "Total jobs that ended in an error.", float64(failed)),
	)

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		_ = enc.Encode(fam)
	}
}

func gaugeFamily(name, help string, value float64) *dto.MetricFamily {
	t := dto.MetricType_GAUGE
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: &t,
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(value)}},
		},
	}
}

func counterFamily(name, help string, value float64) *dto.MetricFamily {
	t := dto.MetricType_COUNTER
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: &t,
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(value)}},
		},
	}
}

func labeledGaugeFamily(name, help, labelName, labelValue string) *dto.MetricFamily {
	t := dto.MetricType_GAUGE
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: &t,
		Metric: []*dto.Metric{
			{
				Label: []*dto.LabelPair{{Name: proto.String(labelName), Value: proto.String(labelValue)}},
				Gauge: &dto.Gauge{Value: proto.Float64(1)},
			},
		},
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
