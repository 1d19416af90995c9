package datastore

import (
	"time"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/observability/metrics"
)

// Metrics is a type alias for the datastore Prometheus metrics.
type Metrics = metrics.DatastoreMetrics

// SetMetrics attaches Prometheus collectors to the datastore.
func (ds *DataStore) SetMetrics(m *Metrics) {
	ds.metrics = m
}

// observe records the outcome and duration of a datastore operation.
// Safe to call with metrics unset.
func (ds *DataStore) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ds.metrics.RecordOperation(operation, status)
	ds.metrics.RecordDuration(operation, time.Since(start).Seconds())
}
