// Package metrics collects runtime counters for connections, sessions and
// their operation queues.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector collects runtime metrics for an engine instance.
type Collector struct {
	// Connect stats.
	connectsTotal    int64
	connectsFailed   int64
	connectsTimedOut int64
	connectLatencyNs int64
	connectCount     int64
	activeConns      int64
	disconnectsTotal int64

	// Session stats.
	sessionsAccepted int64
	sessionsDropped  int64

	// Operation queue stats.
	opsQueued    int64
	opsCompleted int64
	opsRejected  int64
	sendFailed   int64

	// Traffic stats.
	bytesSent     int64
	bytesReceived int64
	msgsSent      int64
	msgsRecv      int64

	// Capability stats.
	proxyOK      int64
	proxyFailed  int64
	secureOK     int64
	secureFailed int64
	rdcCalls     int64
	rdcTimeouts  int64

	// Reconnect stats.
	reconnectAttempts int64
	reconnectSuccess  int64
	reconnectGaveUp   int64

	startTime time.Time
}

// NewCollector creates a new Collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) IncConnectsTotal() {
	atomic.AddInt64(&c.connectsTotal, 1)
}

func (c *Collector) IncConnectsFailed() {
	atomic.AddInt64(&c.connectsFailed, 1)
}

func (c *Collector) IncConnectsTimedOut() {
	atomic.AddInt64(&c.connectsTimedOut, 1)
}

// RecordConnectLatency records the duration of one successful connect
// protocol run (resolve, dial and capability handshakes).
func (c *Collector) RecordConnectLatency(d time.Duration) {
	atomic.AddInt64(&c.connectLatencyNs, int64(d))
	atomic.AddInt64(&c.connectCount, 1)
}

// AddActive adjusts the number of connections in the started state.
func (c *Collector) AddActive(delta int64) {
	atomic.AddInt64(&c.activeConns, delta)
}

func (c *Collector) IncDisconnects() {
	atomic.AddInt64(&c.disconnectsTotal, 1)
}

func (c *Collector) IncSessionsAccepted() {
	atomic.AddInt64(&c.sessionsAccepted, 1)
}

// IncSessionsDropped counts inbound sessions discarded because their
// connect step failed. The application is not notified of these.
func (c *Collector) IncSessionsDropped() {
	atomic.AddInt64(&c.sessionsDropped, 1)
}

func (c *Collector) IncOpsQueued() {
	atomic.AddInt64(&c.opsQueued, 1)
}

func (c *Collector) IncOpsCompleted() {
	atomic.AddInt64(&c.opsCompleted, 1)
}

func (c *Collector) IncOpsRejected() {
	atomic.AddInt64(&c.opsRejected, 1)
}

func (c *Collector) IncSendFailed() {
	atomic.AddInt64(&c.sendFailed, 1)
}

func (c *Collector) AddBytesSent(n int64) {
	atomic.AddInt64(&c.bytesSent, n)
	atomic.AddInt64(&c.msgsSent, 1)
}

func (c *Collector) AddBytesReceived(n int64) {
	atomic.AddInt64(&c.bytesReceived, n)
	atomic.AddInt64(&c.msgsRecv, 1)
}

func (c *Collector) IncProxyOK() {
	atomic.AddInt64(&c.proxyOK, 1)
}

func (c *Collector) IncProxyFailed() {
	atomic.AddInt64(&c.proxyFailed, 1)
}

func (c *Collector) IncSecureOK() {
	atomic.AddInt64(&c.secureOK, 1)
}

func (c *Collector) IncSecureFailed() {
	atomic.AddInt64(&c.secureFailed, 1)
}

func (c *Collector) IncRDCCalls() {
	atomic.AddInt64(&c.rdcCalls, 1)
}

func (c *Collector) IncRDCTimeouts() {
	atomic.AddInt64(&c.rdcTimeouts, 1)
}

func (c *Collector) IncReconnectAttempts() {
	atomic.AddInt64(&c.reconnectAttempts, 1)
}

func (c *Collector) IncReconnectSuccess() {
	atomic.AddInt64(&c.reconnectSuccess, 1)
}

func (c *Collector) IncReconnectGaveUp() {
	atomic.AddInt64(&c.reconnectGaveUp, 1)
}

// Snapshot represents a point-in-time metrics snapshot.
type Snapshot struct {
	Uptime time.Duration

	ConnectsTotal     int64
	ConnectsFailed    int64
	ConnectsTimedOut  int64
	AvgConnectLatency time.Duration
	ActiveConns       int64
	DisconnectsTotal  int64

	SessionsAccepted int64
	SessionsDropped  int64

	OpsQueued    int64
	OpsCompleted int64
	OpsRejected  int64
	SendFailed   int64

	BytesSent     int64
	BytesReceived int64
	MsgsSent      int64
	MsgsRecv      int64

	ProxyOK      int64
	ProxyFailed  int64
	SecureOK     int64
	SecureFailed int64
	RDCCalls     int64
	RDCTimeouts  int64

	ReconnectAttempts int64
	ReconnectSuccess  int64
	ReconnectGaveUp   int64
	ReconnectRate     float64
}

// Pending returns the number of operations queued but not yet completed.
func (s Snapshot) Pending() int64 {
	return s.OpsQueued - s.OpsCompleted
}

func (c *Collector) GetSnapshot() Snapshot {
	s := Snapshot{
		Uptime: time.Since(c.startTime),

		ConnectsTotal:    atomic.LoadInt64(&c.connectsTotal),
		ConnectsFailed:   atomic.LoadInt64(&c.connectsFailed),
		ConnectsTimedOut: atomic.LoadInt64(&c.connectsTimedOut),
		ActiveConns:      atomic.LoadInt64(&c.activeConns),
		DisconnectsTotal: atomic.LoadInt64(&c.disconnectsTotal),

		SessionsAccepted: atomic.LoadInt64(&c.sessionsAccepted),
		SessionsDropped:  atomic.LoadInt64(&c.sessionsDropped),

		OpsQueued:    atomic.LoadInt64(&c.opsQueued),
		OpsCompleted: atomic.LoadInt64(&c.opsCompleted),
		OpsRejected:  atomic.LoadInt64(&c.opsRejected),
		SendFailed:   atomic.LoadInt64(&c.sendFailed),

		BytesSent:     atomic.LoadInt64(&c.bytesSent),
		BytesReceived: atomic.LoadInt64(&c.bytesReceived),
		MsgsSent:      atomic.LoadInt64(&c.msgsSent),
		MsgsRecv:      atomic.LoadInt64(&c.msgsRecv),

		ProxyOK:      atomic.LoadInt64(&c.proxyOK),
		ProxyFailed:  atomic.LoadInt64(&c.proxyFailed),
		SecureOK:     atomic.LoadInt64(&c.secureOK),
		SecureFailed: atomic.LoadInt64(&c.secureFailed),
		RDCCalls:     atomic.LoadInt64(&c.rdcCalls),
		RDCTimeouts:  atomic.LoadInt64(&c.rdcTimeouts),

		ReconnectAttempts: atomic.LoadInt64(&c.reconnectAttempts),
		ReconnectSuccess:  atomic.LoadInt64(&c.reconnectSuccess),
		ReconnectGaveUp:   atomic.LoadInt64(&c.reconnectGaveUp),
	}

	if n := atomic.LoadInt64(&c.connectCount); n > 0 {
		s.AvgConnectLatency = time.Duration(atomic.LoadInt64(&c.connectLatencyNs) / n)
	}
	if s.ReconnectAttempts > 0 {
		s.ReconnectRate = float64(s.ReconnectSuccess) / float64(s.ReconnectAttempts)
	}
	return s
}

// Reset zeroes every counter. Active connections are kept since they
// describe live state rather than history.
func (c *Collector) Reset() {
	for _, p := range []*int64{
		&c.connectsTotal, &c.connectsFailed, &c.connectsTimedOut,
		&c.connectLatencyNs, &c.connectCount, &c.disconnectsTotal,
		&c.sessionsAccepted, &c.sessionsDropped,
		&c.opsQueued, &c.opsCompleted, &c.opsRejected, &c.sendFailed,
		&c.bytesSent, &c.bytesReceived, &c.msgsSent, &c.msgsRecv,
		&c.proxyOK, &c.proxyFailed, &c.secureOK, &c.secureFailed,
		&c.rdcCalls, &c.rdcTimeouts,
		&c.reconnectAttempts, &c.reconnectSuccess, &c.reconnectGaveUp,
	} {
		atomic.StoreInt64(p, 0)
	}
}

// Global is the process-wide collector used when none is configured.
var Global = NewCollector()
