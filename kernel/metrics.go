package kernel

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// kernelMetrics mirrors observability.ModuleMetrics's lazy
// singleton-plus-MustRegister shape, scoped to the kernel's own command
// dispatch instead of RPC module activity.
type kernelMetrics struct {
	commands     *prometheus.CounterVec
	liquidations prometheus.Counter
}

var (
	kernelMetricsOnce sync.Once
	kernelMetricsReg  *kernelMetrics
)

func metricsInstance() *kernelMetrics {
	kernelMetricsOnce.Do(func() {
		kernelMetricsReg = &kernelMetrics{
			commands: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultbridge",
				Subsystem: "kernel",
				Name:      "commands_total",
				Help:      "Total kernel commands dispatched, by command and outcome.",
			}, []string{"command", "outcome"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "vaultbridge",
				Subsystem: "kernel",
				Name:      "vault_liquidations_total",
				Help:      "Total vaults liquidated by report_undercollateralized_vault.",
			}),
		}
		prometheus.MustRegister(kernelMetricsReg.commands, kernelMetricsReg.liquidations)
	})
	return kernelMetricsReg
}

func (m *kernelMetrics) observe(command string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}
