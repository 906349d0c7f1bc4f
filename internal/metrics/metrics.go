package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vault-level gauges, refreshed each maintenance cycle.
var (
	TotalManagedAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ivm_total_managed_assets",
		Help: "Total managed assets in base units, pending management fee accounted.",
	})
	TotalShareSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ivm_total_share_supply",
		Help: "Outstanding vault share supply in base units.",
	})
	IdleAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ivm_idle_assets",
		Help: "Uninvested assets in base units.",
	})
	SharePrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ivm_share_price",
		Help: "Display share price, assets per share.",
	})
)

// Operation counters, incremented by the serving layer.
var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ivm_operations_total",
		Help: "Vault operations by kind and outcome.",
	}, []string{"kind", "outcome"})

	MaintenanceCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_maintenance_cycles_total",
		Help: "Completed maintenance cycles.",
	})
)

// RecordOperation bumps the operation counter for one executed operation.
func RecordOperation(kind string, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	Operations.WithLabelValues(kind, outcome).Inc()
}
