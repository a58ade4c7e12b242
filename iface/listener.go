package iface

import (
	"log/slog"

	"github.com/soypat/utcp/tcp"
)

// Listener is the bound-port side of the Stream API (§4.5): Accept blocks
// until a SYN on its port has been answered with a SYN|ACK.
type Listener struct {
	table  *Table
	port   uint16
	closed bool
}

// Bind reserves localPort on iface, returning a Listener that can Accept
// incoming connections.
func (t *Table) Bind(port uint16) (*Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.backlogs[port]; exists {
		return nil, ErrAddrInUse
	}
	t.backlogs[port] = &backlog{}
	t.Debug("table:bind", slog.Uint64("port", uint64(port)))
	return &Listener{table: t, port: port}, nil
}

// Accept blocks until the listener's backlog holds a connection and returns
// a Stream wrapping it (§4.5 accept()). Dispatch queues a connection as soon
// as it answers the peer's SYN, so the returned Stream may still be in
// SYN_RCVD; Accept does not wait for the handshake's final ACK.
func (l *Listener) Accept() (*Stream, error) {
	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if l.closed {
			return nil, ErrClosed
		}
		b := t.backlogs[l.port]
		if b == nil {
			return nil, ErrClosed
		}
		if q, ok := b.pop(); ok {
			conn, ok := t.conns[q]
			if !ok {
				continue // connection was aborted between handshake and accept
			}
			t.Debug("listener:accept", slog.Uint64("port", uint64(l.port)))
			return &Stream{table: t, quad: q, conn: conn}, nil
		}
		t.waitPending()
	}
}

// Close removes the listener's backlog and aborts every connection still
// queued in it with a RST, sent via send (§4.5 "Listener drop"; §9
// "Listener drop with pending Quads").
func (l *Listener) Close(send Sender) error {
	t := l.table
	t.mu.Lock()
	if l.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	b, ok := t.backlogs[l.port]
	delete(t.backlogs, l.port)
	type abort struct {
		quad tcp.Quad
		seq  tcp.Value
	}
	var aborted []abort
	if ok {
		for _, q := range b.quads {
			if conn, ok := t.conns[q]; ok {
				aborted = append(aborted, abort{q, conn.SndNXT()})
				t.Remove(q)
			}
		}
	}
	t.Debug("listener:close", slog.Uint64("port", uint64(l.port)))
	t.mu.Unlock()
	for _, a := range aborted {
		if err := SendRST(a.quad, a.seq, send); err != nil {
			t.Error("listener:close-rst", slog.String("err", err.Error()))
		}
	}
	return nil
}

// Port returns the listener's bound local port.
func (l *Listener) Port() uint16 { return l.port }
