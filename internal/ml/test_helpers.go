package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu             sync.Mutex
	predictions    int
	failures       int
	shapeMismatch  int
	latencySum     float64
	latencyCount   int
	modelAge       float64
	labelsObserved map[string]int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLShapeMismatchInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shapeMismatch++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLLabelObserve(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labelsObserved == nil {
		m.labelsObserved = make(map[string]int)
	}
	m.labelsObserved[label]++
}
