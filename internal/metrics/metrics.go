package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Pulls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_sync_pulls_total",
		Help: "Total number of successful pulls from the remote sheet.",
	})
	RowsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forecast_store_rows",
		Help: "Number of daily records in the working table.",
	})
	Pushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_sync_pushes_total",
		Help: "Total number of successful pushes with at least one cell.",
	})
	CellsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_sync_cells_pushed_total",
		Help: "Total number of cells written to the remote sheet.",
	})
	RangesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_sync_ranges_pushed_total",
		Help: "Total number of ranges written to the remote sheet.",
	})
	Retries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_sync_retries_total",
		Help: "Total number of rate-limited remote calls that were retried.",
	})
	RemoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_sync_remote_errors_total",
		Help: "Remote failures surfaced to the caller, by kind.",
	}, []string{"kind"})
	PendingEdits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forecast_store_pending_edits",
		Help: "Number of edited cells not yet pushed.",
	})
	TrainDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forecast_train_duration_seconds",
		Help:    "Duration of a training cycle.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"target"})
	TrainFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_train_failures_total",
		Help: "Training cycles that ended in an error.",
	}, []string{"target"})
	ModelR2 = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forecast_model_r2",
		Help: "Held-out R² of the current model.",
	}, []string{"target"})
	ModelMAE = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "forecast_model_mae",
		Help: "Held-out mean absolute error of the current model.",
	}, []string{"target"})
	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_predictions_total",
		Help: "Total number of predictions served.",
	}, []string{"target"})
	ReportsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_reports_published_total",
		Help: "Reports and predictions delivered, by sink.",
	}, []string{"sink"})
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forecast_ws_clients",
		Help: "Connected websocket subscribers.",
	})
	WSDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_ws_dropped_total",
		Help: "Messages dropped because a subscriber queue was full.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
