// Package metrics exposes monitor activity as Prometheus collectors.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericogr/motor-pdm/pkg/warning"
	"github.com/ericogr/motor-pdm/pkg/zone"
)

type Metrics struct {
	cycles       *prometheus.CounterVec
	predictions  *prometheus.CounterVec
	state        prometheus.Gauge
	sensorErrors *prometheus.CounterVec
	inferErrors  prometheus.Counter
	inferLatency prometheus.Histogram
	labels       *prometheus.CounterVec
	diagnoses    *prometheus.CounterVec
	skipped      prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdm_cycles_total",
			Help: "Acquisition cycles completed, by data source",
		}, []string{"mode"}),
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdm_predictions_total",
			Help: "Predicted zone labels",
		}, []string{"zone"}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Name: "pdm_warning_state",
			Help: "Current warning state (0 unknown, 1 safe, 2 imminent, 3 warn)",
		}),
		sensorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdm_sensor_errors_total",
			Help: "Failed or skipped sensor reads",
		}, []string{"sensor"}),
		inferErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "pdm_inference_errors_total",
			Help: "Model evaluations that failed",
		}),
		inferLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdm_inference_duration_seconds",
			Help:    "Time spent evaluating the model",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		labels: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdm_model_labels_total",
			Help: "Raw class labels returned by the model, -1 for out of range",
		}, []string{"label"}),
		diagnoses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pdm_diagnoses_total",
			Help: "Simulated-mode prediction results by zone error",
		}, []string{"result"}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "pdm_cycles_skipped_total",
			Help: "Cycles that left the indicators unchanged",
		}),
	}
}

func (m *Metrics) ObserveInference(d time.Duration, label zone.Label, err error) {
	m.inferLatency.Observe(d.Seconds())
	if err != nil {
		m.inferErrors.Inc()
		return
	}
	m.labels.WithLabelValues(strconv.Itoa(int(label))).Inc()
}

// SensorError matches the sensor façade's error hook.
func (m *Metrics) SensorError(sensor string, _ error) {
	m.sensorErrors.WithLabelValues(sensor).Inc()
}

func (m *Metrics) ObserveOutcome(simulated bool, o warning.Outcome) {
	mode := "real"
	if simulated {
		mode = "simulated"
	}
	m.cycles.WithLabelValues(mode).Inc()
	m.predictions.WithLabelValues(o.Display).Inc()
	m.state.Set(float64(o.State))
	if d := o.Diagnosis; d != nil {
		m.diagnoses.WithLabelValues(result(d)).Inc()
	}
}

func (m *Metrics) CycleSkipped() { m.skipped.Inc() }

func result(d *warning.Diagnosis) string {
	switch {
	case d.ZoneError < 0:
		return "unknown"
	case d.ZoneError == 0:
		return "correct"
	case d.ZoneError == 1:
		return "single_zone"
	default:
		return "multi_zone"
	}
}

// Handler routes /metrics and /healthz.
func Handler(g prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	}).Methods(http.MethodGet)
	return r
}

// Serve runs the HTTP endpoint until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *slog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      Handler(g),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("metrics endpoint stopped")
	return nil
}
