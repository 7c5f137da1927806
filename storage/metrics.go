package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

var storageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tokenring",
	Subsystem: "storage",
	Name:      "errors_total",
	Help:      "Errors returned by the storage driver",
}, []string{"operation", "path"})

// RegisterMetrics exports the storage error counter
func RegisterMetrics(registerer prometheus.Registerer) error {
	return registerer.Register(storageErrors)
}

func prometheusRecordStorageError(operation string, path string) {
	storageErrors.With(prometheus.Labels{"operation": operation, "path": path}).Inc()
}
