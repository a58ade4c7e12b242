package iface

import (
	"io"
	"log/slog"

	"github.com/soypat/utcp/tcp"
)

// Stream is the per-connection stream handle returned by Listener.Accept:
// the blocking Read/Write/Flush/Close surface of §4.5.
type Stream struct {
	table *Table
	quad  tcp.Quad
	conn  *tcp.Connection
}

// LocalPort and RemotePort report the stream's bound ports.
func (s *Stream) LocalPort() uint16  { return s.quad.LocalPort }
func (s *Stream) RemotePort() uint16 { return s.quad.RemotePort }

// State returns the connection's current TCP state.
func (s *Stream) State() tcp.State {
	s.table.Lock()
	defer s.table.Unlock()
	return s.conn.State()
}

// live reports whether s.quad is still present in the table; must be
// called with the table locked.
func (s *Stream) live() bool {
	_, ok := s.table.conns[s.quad]
	return ok
}

// Read blocks until data is available, the connection has left the states
// that receive data (returning io.EOF), or the connection is aborted (§4.5
// read()). io.EOF follows a peer FIN received in FIN_WAIT_1 or FIN_WAIT_2;
// a FIN received in ESTABLISHED leaves the state unchanged, so Read keeps
// blocking.
func (s *Stream) Read(p []byte) (int, error) {
	t := s.table
	t.Lock()
	defer t.Unlock()
	for {
		if !s.live() {
			if n := s.conn.BufferedInput(); n > 0 {
				return s.conn.Read(p), nil
			}
			return 0, ErrConnAborted
		}
		if n := s.conn.BufferedInput(); n > 0 {
			return s.conn.Read(p), nil
		}
		if !s.conn.State().RxDataOpen() {
			return 0, io.EOF
		}
		t.waitRcv()
	}
}

// Write appends p to the outbound queue, returning ErrWouldBlock when the
// queue is already full (§4.5 write()).
func (s *Stream) Write(p []byte) (int, error) {
	t := s.table
	t.Lock()
	defer t.Unlock()
	if !s.live() {
		return 0, ErrConnAborted
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return 0, ErrWouldBlock
	}
	return n, nil
}

// Flush reports ErrWouldBlock while bytes remain unacked, and nil once the
// outbound queue has fully drained (§4.5 flush()). It does not block:
// callers poll it with repeated Flush calls.
func (s *Stream) Flush() error {
	t := s.table
	t.Lock()
	defer t.Unlock()
	if !s.live() {
		return ErrConnAborted
	}
	if err := s.conn.Flush(); err != nil {
		return ErrWouldBlock
	}
	return nil
}

// Close requests a graceful shutdown of the stream: schedules a FIN and
// leaves the connection in the table until the engine reaches TIME_WAIT
// and the tick driver evicts it (§4.2 state machine; §9 "Stream drop").
func (s *Stream) Close() error {
	t := s.table
	t.Lock()
	defer t.Unlock()
	if !s.live() {
		return ErrConnAborted
	}
	err := s.conn.Close()
	t.Debug("stream:close", slog.Uint64("lport", uint64(s.quad.LocalPort)), slog.Uint64("rport", uint64(s.quad.RemotePort)))
	if err != nil {
		return ErrNotConnected
	}
	return nil
}
