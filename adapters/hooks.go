// File: adapters/hooks.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Hook glue: logging defaults, func adapter, fan-out chain and metrics.

package adapters

import (
	"log"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/control"
)

// Metric keys maintained by MetricsHooks.
const (
	MetricHookConnections = "hooks.connections"
	MetricHookData        = "hooks.data_events"
	MetricHookBytes       = "hooks.bytes"
	MetricHookClosed      = "hooks.closed"
	MetricHookErrors      = "hooks.errors"
)

// LogHooks is the default api.Hooks implementation. It logs every event
// and never vetoes. Payloads are not logged, only their size.
type LogHooks struct {
	log *log.Logger
}

// NewLogHooks returns hooks writing to l, or to the standard logger if l is nil.
func NewLogHooks(l *log.Logger) *LogHooks {
	if l == nil {
		l = log.Default()
	}
	return &LogHooks{log: l}
}

func (h *LogHooks) OnNewConnection(info api.ConnInfo) bool {
	h.log.Printf("[conn] #%d new connection from %s (fd %d -> fd %d %s)",
		info.ID, info.ClientAddr, info.ClientFD, info.RemoteFD, info.RemoteAddr)
	return true
}

func (h *LogHooks) OnNewData(info api.ConnInfo, data []byte) bool {
	h.log.Printf("[conn] #%d received %d bytes from %s", info.ID, len(data), info.Side)
	return true
}

func (h *LogHooks) OnConnectionClosed(info api.ConnInfo) {
	if info.Err != nil {
		h.log.Printf("[conn] #%d closed by %s: %v", info.ID, info.Side, info.Err)
		return
	}
	h.log.Printf("[conn] #%d closed by %s", info.ID, info.Side)
}

func (h *LogHooks) OnError(msg string) {
	h.log.Printf("[conn] error: %s", msg)
}

// HookFuncs adapts plain functions to api.Hooks. A nil func delegates to
// Fallback; with no Fallback the event is accepted silently.
type HookFuncs struct {
	NewConnection    func(info api.ConnInfo) bool
	NewData          func(info api.ConnInfo, data []byte) bool
	ConnectionClosed func(info api.ConnInfo)
	Error            func(msg string)
	Fallback         api.Hooks
}

func (f HookFuncs) OnNewConnection(info api.ConnInfo) bool {
	switch {
	case f.NewConnection != nil:
		return f.NewConnection(info)
	case f.Fallback != nil:
		return f.Fallback.OnNewConnection(info)
	}
	return true
}

func (f HookFuncs) OnNewData(info api.ConnInfo, data []byte) bool {
	switch {
	case f.NewData != nil:
		return f.NewData(info, data)
	case f.Fallback != nil:
		return f.Fallback.OnNewData(info, data)
	}
	return true
}

func (f HookFuncs) OnConnectionClosed(info api.ConnInfo) {
	switch {
	case f.ConnectionClosed != nil:
		f.ConnectionClosed(info)
	case f.Fallback != nil:
		f.Fallback.OnConnectionClosed(info)
	}
}

func (f HookFuncs) OnError(msg string) {
	switch {
	case f.Error != nil:
		f.Error(msg)
	case f.Fallback != nil:
		f.Fallback.OnError(msg)
	}
}

type chain []api.Hooks

// ChainHooks calls every hook in order. A pair is kept only if all of
// them keep it; later hooks still run after a veto.
func ChainHooks(hooks ...api.Hooks) api.Hooks {
	c := make(chain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			c = append(c, h)
		}
	}
	return c
}

func (c chain) OnNewConnection(info api.ConnInfo) bool {
	keep := true
	for _, h := range c {
		keep = h.OnNewConnection(info) && keep
	}
	return keep
}

func (c chain) OnNewData(info api.ConnInfo, data []byte) bool {
	keep := true
	for _, h := range c {
		keep = h.OnNewData(info, data) && keep
	}
	return keep
}

func (c chain) OnConnectionClosed(info api.ConnInfo) {
	for _, h := range c {
		h.OnConnectionClosed(info)
	}
}

func (c chain) OnError(msg string) {
	for _, h := range c {
		h.OnError(msg)
	}
}

type metricsHooks struct {
	next api.Hooks
	ctrl *control.Control
}

// MetricsHooks counts hook events into ctrl before passing them to next.
// A nil next accepts everything.
func MetricsHooks(next api.Hooks, ctrl *control.Control) api.Hooks {
	if next == nil {
		next = HookFuncs{}
	}
	return &metricsHooks{next: next, ctrl: ctrl}
}

func (m *metricsHooks) OnNewConnection(info api.ConnInfo) bool {
	m.ctrl.AddMetric(MetricHookConnections, 1)
	return m.next.OnNewConnection(info)
}

func (m *metricsHooks) OnNewData(info api.ConnInfo, data []byte) bool {
	m.ctrl.AddMetric(MetricHookData, 1)
	m.ctrl.AddMetric(MetricHookBytes, int64(len(data)))
	return m.next.OnNewData(info, data)
}

func (m *metricsHooks) OnConnectionClosed(info api.ConnInfo) {
	m.ctrl.AddMetric(MetricHookClosed, 1)
	m.next.OnConnectionClosed(info)
}

func (m *metricsHooks) OnError(msg string) {
	m.ctrl.AddMetric(MetricHookErrors, 1)
	m.next.OnError(msg)
}

var (
	_ api.Hooks = (*LogHooks)(nil)
	_ api.Hooks = HookFuncs{}
	_ api.Hooks = chain(nil)
	_ api.Hooks = (*metricsHooks)(nil)
)
