package metrics

import "sync/atomic"

// RunMetrics tracks aggregate engine activity for a single harness run
// using lock-free counters, safe to update concurrently from the cycle
// controller's parallel branch-cycle goroutines without a mutex.
type RunMetrics struct {
	passesRun       atomic.Int64
	oracleRetries   atomic.Int64
	oracleErrors    atomic.Int64
	branchesCreated atomic.Int64
	probesRun       atomic.Int64
}

// NewRunMetrics creates a new run-metrics counter set.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{}
}

// RecordPass records a completed pass invocation.
func (m *RunMetrics) RecordPass() {
	m.passesRun.Add(1)
}

// RecordOracleRetry records a retried oracle call.
func (m *RunMetrics) RecordOracleRetry() {
	m.oracleRetries.Add(1)
}

// RecordOracleError records an oracle call that exhausted its retries.
func (m *RunMetrics) RecordOracleError() {
	m.oracleErrors.Add(1)
}

// RecordBranchCreated records a branch created from a queued proposal.
func (m *RunMetrics) RecordBranchCreated() {
	m.branchesCreated.Add(1)
}

// RecordProbeRun records a compression probe scored against the oracle.
func (m *RunMetrics) RecordProbeRun() {
	m.probesRun.Add(1)
}

// Snapshot returns the current counter values.
func (m *RunMetrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"passes_run":       m.passesRun.Load(),
		"oracle_retries":   m.oracleRetries.Load(),
		"oracle_errors":    m.oracleErrors.Load(),
		"branches_created": m.branchesCreated.Load(),
		"probes_run":       m.probesRun.Load(),
	}
}

// OracleErrorRate returns exhausted-retry errors divided by retries plus
// errors. Successful calls are not counted in the denominator.
func (m *RunMetrics) OracleErrorRate() float64 {
	total := m.oracleRetries.Load() + m.oracleErrors.Load()
	if total == 0 {
		return 0.0
	}
	return float64(m.oracleErrors.Load()) / float64(total)
}
