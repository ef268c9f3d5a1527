package api

import (
	"net/http"

	"contentaugment/internal/application/dto"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MetricPoint is one data point of a collected instrument.
type MetricPoint struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      float64           `json:"value,omitempty"`
	Count      uint64            `json:"count,omitempty"`
	Sum        float64           `json:"sum,omitempty"`
}

// MetricSnapshot is one instrument with its points.
type MetricSnapshot struct {
	Name   string        `json:"name"`
	Unit   string        `json:"unit,omitempty"`
	Kind   string        `json:"kind"`
	Points []MetricPoint `json:"points"`
}

// MetricsHandler serves the pipeline instruments collected by a manual reader.
type MetricsHandler struct {
	reader *sdkmetric.ManualReader
}

// NewMetricsHandler creates a MetricsHandler over reader.
func NewMetricsHandler(reader *sdkmetric.ManualReader) *MetricsHandler {
	return &MetricsHandler{reader: reader}
}

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(r.Context(), &rm); err != nil {
		writeJSONOrFail(w, http.StatusServiceUnavailable,
			dto.NewErrorResponse(dto.ErrorCodeServiceUnavailable, "metrics collection failed", nil))
		return
	}

	snapshots := make([]MetricSnapshot, 0)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			snapshots = append(snapshots, snapshotOf(m))
		}
	}
	writeJSONOrFail(w, http.StatusOK, map[string]interface{}{"metrics": snapshots})
}

func snapshotOf(m metricdata.Metrics) MetricSnapshot {
	snapshot := MetricSnapshot{Name: m.Name, Unit: m.Unit, Points: make([]MetricPoint, 0)}

	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		snapshot.Kind = "counter"
		for _, dp := range data.DataPoints {
			snapshot.Points = append(snapshot.Points, MetricPoint{
				Attributes: attributesOf(dp.Attributes.ToSlice()),
				Value:      float64(dp.Value),
			})
		}
	case metricdata.Sum[float64]:
		snapshot.Kind = "counter"
		for _, dp := range data.DataPoints {
			snapshot.Points = append(snapshot.Points, MetricPoint{
				Attributes: attributesOf(dp.Attributes.ToSlice()),
				Value:      dp.Value,
			})
		}
	case metricdata.Histogram[float64]:
		snapshot.Kind = "histogram"
		for _, dp := range data.DataPoints {
			snapshot.Points = append(snapshot.Points, MetricPoint{
				Attributes: attributesOf(dp.Attributes.ToSlice()),
				Count:      dp.Count,
				Sum:        dp.Sum,
			})
		}
	default:
		snapshot.Kind = "other"
	}
	return snapshot
}

func attributesOf(kvs []attribute.KeyValue) map[string]string {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}
