package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.pipsAdmitted, "pipsAdmitted counter should be initialized")
	assert.NotNil(t, collector.pipsCompleted, "pipsCompleted counter should be initialized")
	assert.NotNil(t, collector.pipsDuplicate, "pipsDuplicate counter should be initialized")
	assert.NotNil(t, collector.pipsFailed, "pipsFailed counter should be initialized")
	assert.NotNil(t, collector.batchSize, "batchSize histogram should be initialized")
	assert.NotNil(t, collector.notificationFlushTime, "notificationFlushTime histogram should be initialized")
	assert.NotNil(t, collector.executionLogBytes, "executionLogBytes histogram should be initialized")
	assert.NotNil(t, collector.attachDuration, "attachDuration histogram should be initialized")
	assert.NotNil(t, collector.workersAttached, "workersAttached gauge should be initialized")
	assert.NotNil(t, collector.pipsInFlight, "pipsInFlight gauge should be initialized")
}

func TestRecordAdmitted(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordAdmitted()
	}, "RecordAdmitted should not panic")

	for i := 0; i < 5; i++ {
		collector.RecordAdmitted()
	}
}

func TestRecordCompleted(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordCompleted()
	}, "RecordCompleted should not panic")

	for i := 0; i < 10; i++ {
		collector.RecordCompleted()
	}
}

func TestRecordDuplicate(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordDuplicate()
	}, "RecordDuplicate should not panic")
}

func TestRecordFailed(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordFailed()
	}, "RecordFailed should not panic")

	for i := 0; i < 3; i++ {
		collector.RecordFailed()
	}
}

func TestObserveBatchSize(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	sizes := []int{1, 4, 16, 100}
	for _, s := range sizes {
		assert.NotPanics(t, func() {
			collector.ObserveBatchSize(s)
		}, "ObserveBatchSize should not panic with size %d", s)
	}
}

func TestObserveNotificationFlushLatency(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	latencies := []float64{0.001, 0.01, 0.1, 1.0, 5.0}
	for _, latency := range latencies {
		assert.NotPanics(t, func() {
			collector.ObserveNotificationFlushLatency(latency)
		}, "ObserveNotificationFlushLatency should not panic with latency %f", latency)
	}
}

func TestObserveExecutionLogBytes(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.ObserveExecutionLogBytes(4096)
	}, "ObserveExecutionLogBytes should not panic")
}

func TestObserveAttachDuration(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.ObserveAttachDuration(1.5)
	}, "ObserveAttachDuration should not panic")
}

func TestSetWorkersAttachedAndPipsInFlight(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	testCases := []struct {
		name      string
		workers   int
		inFlight  int
	}{
		{"zero values", 0, 0},
		{"normal values", 10, 5},
		{"high in-flight", 5, 50},
		{"equal values", 20, 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				collector.SetWorkersAttached(tc.workers)
				collector.SetPipsInFlight(tc.inFlight)
			}, "Set gauges should not panic")
		})
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	done := make(chan bool, 100)

	for i := 0; i < 100; i++ {
		go func() {
			collector.RecordAdmitted()
			collector.RecordCompleted()
			collector.ObserveBatchSize(4)
			collector.SetPipsInFlight(5)
			done <- true
		}()
	}

	for i := 0; i < 100; i++ {
		<-done
	}
}

func TestCollectorIsolation(t *testing.T) {
	// Test multiple collector instances work independently
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector1 := NewCollector()
	require.NotNil(t, collector1)

	// Second collector will panic due to duplicate registration
	// This is expected: a process should have only one collector
	assert.Panics(t, func() {
		NewCollector()
	}, "Creating a second collector should panic due to duplicate registration")
}

func TestMetricOperationSequence(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		// 1. pip-step admitted
		collector.RecordAdmitted()
		collector.SetPipsInFlight(1)

		// 2. pip-step batched and sent
		collector.ObserveBatchSize(1)

		// 3. pip-step completed
		collector.RecordCompleted()
		collector.SetPipsInFlight(0)
	}, "Complete pip-step lifecycle should not panic")
}

func TestMetricOperationWithFailure(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		// 1. pip-step admitted
		collector.RecordAdmitted()

		// 2. duplicate sequence number dropped
		collector.RecordDuplicate()

		// 3. pip-step failed
		collector.RecordFailed()
	}, "Pip-step failure scenario should not panic")
}

func TestAttachScenario(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.ObserveAttachDuration(2.5)
		collector.SetWorkersAttached(1)
		collector.RecordAdmitted()
		collector.RecordCompleted()
	}, "Attach scenario should not panic")
}

func TestZeroAndNegativeValues(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.ObserveNotificationFlushLatency(0.0)
		collector.ObserveBatchSize(0)
		collector.SetPipsInFlight(0)
		collector.SetPipsInFlight(-1) // negative values (shouldn't happen)
	}, "Edge case values should not panic")
}
