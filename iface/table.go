// Package iface implements the multiplexing/demultiplexing fabric that
// drives the tcp package's per-connection engines from a single shared TUN
// device: the packet dispatcher, the connection table and its
// synchronization primitives, the periodic tick driver, and the blocking
// Listener/Stream API applications call.
package iface

import (
	"sync"
	"time"

	"github.com/soypat/utcp/internal/xlog"
	"github.com/soypat/utcp/tcp"
)

// SendQueueSize and RecvQueueSize size every connection's buffers.
const (
	SendQueueSize = tcp.SendQueueSize
	RecvQueueSize = tcp.RecvQueueSize
)

// backlog is the FIFO queue of four-tuples whose SYN has been answered on a
// bound port and that await Accept (§3 "Pending table").
type backlog struct {
	quads []tcp.Quad
}

func (b *backlog) push(q tcp.Quad) { b.quads = append(b.quads, q) }

func (b *backlog) pop() (tcp.Quad, bool) {
	if len(b.quads) == 0 {
		return tcp.Quad{}, false
	}
	q := b.quads[0]
	b.quads = b.quads[1:]
	return q, true
}

// Table is the connection table and pending table, the shared mutex that
// protects them, and the two condition variables application threads wait
// on (§4.4 Connection table & synchronization).
//
// One mutex protects everything reachable from Table: the connection map,
// the per-port backlogs, and every Connection's mutable state. This is
// deliberate — the whole point of the "one big lock" scheduling model
// (§5) is that a single acquisition lets the dispatcher and the tick
// driver both touch many connections without per-connection locking.
type Table struct {
	mu sync.Mutex
	// pendingVar wakes Listener.Accept when a backlog gains an entry.
	pendingVar sync.Cond
	// rcvVar wakes Stream.Read (and, pending the documented split, Write)
	// when a connection's state changes in a way that could unblock it.
	rcvVar sync.Cond

	conns    map[tcp.Quad]*tcp.Connection
	backlogs map[uint16]*backlog
	// timeWaitSince records when a connection was first observed in
	// TIME_WAIT, so Tick can evict it after the 2·MSL linger (§4.2 "a
	// production implementation should schedule removal after 2·MSL").
	timeWaitSince map[tcp.Quad]time.Time

	iss *tcp.ISSGenerator

	xlog.Logger
}

// NewTable constructs an empty connection table.
func NewTable() *Table {
	t := &Table{
		conns:         make(map[tcp.Quad]*tcp.Connection),
		backlogs:      make(map[uint16]*backlog),
		timeWaitSince: make(map[tcp.Quad]time.Time),
		iss:           tcp.NewISSGenerator(),
	}
	t.pendingVar.L = &t.mu
	t.rcvVar.L = &t.mu
	return t
}

// waitPending blocks on pendingVar until woken; callers re-check their
// condition (backlog non-empty) in a loop, per the standard sync.Cond
// contract.
func (t *Table) waitPending() { t.pendingVar.Wait() }

// waitRcv blocks on rcvVar until woken.
func (t *Table) waitRcv() { t.rcvVar.Wait() }

// Lock and Unlock expose the table mutex directly to Stream/Listener,
// which need to hold it across a read-modify-wait loop on a Connection
// they otherwise address independently of Table's own methods.
func (t *Table) Lock()   { t.mu.Lock() }
func (t *Table) Unlock() { t.mu.Unlock() }

// Get returns the connection for q, if present.
func (t *Table) Get(q tcp.Quad) (*tcp.Connection, bool) {
	c, ok := t.conns[q]
	return c, ok
}

// Insert adds a newly-accepted connection to the table and its port's
// backlog, then wakes one accept waiter.
func (t *Table) Insert(port uint16, q tcp.Quad, c *tcp.Connection) {
	t.conns[q] = c
	if b, ok := t.backlogs[port]; ok {
		b.push(q)
	}
	t.pendingVar.Signal()
}

// Remove evicts q from the table, e.g. once its connection reaches
// TIME_WAIT and the 2·MSL linger elapses, or on RST.
func (t *Table) Remove(q tcp.Quad) {
	delete(t.conns, q)
	delete(t.timeWaitSince, q)
}

// HasListener reports whether port has an active backlog.
func (t *Table) HasListener(port uint16) bool {
	_, ok := t.backlogs[port]
	return ok
}

// NextISS generates a fresh initial sequence number for q.
func (t *Table) NextISS(q tcp.Quad) tcp.Value {
	return t.iss.ISS(q.LocalAddr, q.RemoteAddr, q.LocalPort, q.RemotePort)
}

// SignalRcv wakes every waiter on rcvVar; used on any state change that
// could unblock a Read (new data, peer FIN, abort) since a single condvar
// currently serves both directions (§9 "Read/write condvars").
func (t *Table) SignalRcv() { t.rcvVar.Broadcast() }
