// File: control/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Control bundles metrics and debug probes behind one Stats snapshot.

package control

// Metric keys maintained by the forwarding engine.
const (
	MetricAccepted        = "conn.accepted"
	MetricConnectFailed   = "conn.connect_failed"
	MetricClosed          = "conn.closed"
	MetricActivePairs     = "pairs.active"
	MetricBytesRelayed    = "bytes.relayed"
	MetricShortWrites     = "writes.short"
	MetricAcceptTransient = "accept.transient_errors"
	MetricHookVetoes      = "hooks.vetoes"
)

// Control exposes metrics and debug probes.
type Control struct {
	metrics *MetricsRegistry
	debug   *DebugProbes
}

// NewControl creates a Control with the platform probes registered.
func NewControl() *Control {
	c := &Control{
		metrics: NewMetricsRegistry(),
		debug:   NewDebugProbes(),
	}
	RegisterPlatformProbes(c.debug)
	return c
}

// Metrics returns the metrics registry.
func (c *Control) Metrics() *MetricsRegistry { return c.metrics }

// SetMetric sets a metric value.
func (c *Control) SetMetric(key string, value any) { c.metrics.Set(key, value) }

// AddMetric increments a counter.
func (c *Control) AddMetric(key string, delta int64) int64 { return c.metrics.Add(key, delta) }

// RegisterDebugProbe adds a named probe.
func (c *Control) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// Stats merges metrics with probe output; probe keys get a "debug." prefix.
func (c *Control) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}
