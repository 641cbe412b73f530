package organize

import (
	"sync/atomic"
	"time"

	"github.com/intellego-platform/report-exporter/internal/model"
)

// Monitor accumulates per-operation processing counters. Counter methods
// are atomic because batches execute concurrently; a monitor instance is
// scoped to one operation of one run and must not be shared across runs.
type Monitor struct {
	operation string
	startTime time.Time

	records  atomic.Int64
	errors   atomic.Int64
	warnings atomic.Int64
}

// NewMonitor creates a monitor for the named operation.
func NewMonitor(operation string) *Monitor {
	return &Monitor{operation: operation}
}

// Start captures the wall-clock start time.
func (m *Monitor) Start() {
	m.startTime = time.Now()
}

// AddRecord counts one processed record.
func (m *Monitor) AddRecord() {
	m.records.Add(1)
}

// AddError counts one encountered error.
func (m *Monitor) AddError() {
	m.errors.Add(1)
}

// AddWarning counts one generated warning.
func (m *Monitor) AddWarning() {
	m.warnings.Add(1)
}

// Finish captures the end time and returns the accumulated metrics.
func (m *Monitor) Finish() model.ProcessingMetrics {
	end := time.Now()
	return model.ProcessingMetrics{
		Operation:         m.operation,
		StartTime:         m.startTime,
		EndTime:           end,
		Duration:          end.Sub(m.startTime),
		RecordsProcessed:  m.records.Load(),
		ErrorsEncountered: m.errors.Load(),
		WarningsGenerated: m.warnings.Load(),
	}
}
