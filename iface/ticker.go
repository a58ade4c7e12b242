package iface

import (
	"log/slog"
	"time"

	"github.com/soypat/utcp/tcp"
)

// msl is the assumed Maximum Segment Lifetime used to size the TIME_WAIT
// linger (§4.2 "a production implementation should schedule removal after
// 2·MSL"). RFC 793 suggests 2 minutes; this package picks a shorter value
// suited to a user-space stack talking to a local TUN, not the public
// Internet, and records the choice in the design notes rather than the
// RFC's figure.
const msl = 30 * time.Second

// timeWaitLinger is how long a connection remains reachable (for any
// straggling retransmission of the final ACK) after reaching TIME_WAIT.
const timeWaitLinger = 2 * msl

// Tick drives every connection's on_tick step once (§4.6 "Retransmission
// and new transmission"): retransmitting overdue unacked data, sending
// newly-buffered writes, and reaping connections that have lingered in
// TIME_WAIT past 2·MSL. Called by Interface's tick goroutine every
// tickInterval (10ms) (§5 "Tick thread").
func (t *Table) Tick(now time.Time, send Sender) {
	t.mu.Lock()
	type outbound struct {
		quad tcp.Quad
		seg  tcp.Segment
		body []byte
	}
	var pending []outbound
	var reaped []tcp.Quad

	for quad, conn := range t.conns {
		seg, payload, has := conn.OnTick(now)
		if has {
			body := append([]byte(nil), payload...)
			pending = append(pending, outbound{quad, seg, body})
		}

		if conn.State() != tcp.StateTimeWait {
			delete(t.timeWaitSince, quad)
			continue
		}
		since, tracked := t.timeWaitSince[quad]
		if !tracked {
			t.timeWaitSince[quad] = now
			continue
		}
		if now.Sub(since) >= timeWaitLinger {
			reaped = append(reaped, quad)
		}
	}
	for _, quad := range reaped {
		t.Remove(quad)
		t.Debug("tick:reap-time-wait", slog.Uint64("lport", uint64(quad.LocalPort)), slog.Uint64("rport", uint64(quad.RemotePort)))
	}
	if len(reaped) > 0 {
		t.rcvVar.Broadcast()
	}
	t.mu.Unlock()

	for _, p := range pending {
		pkt := encodeReply(p.quad, p.seg, p.body)
		if err := send(pkt); err != nil {
			t.Error("tick:send", slog.String("err", err.Error()))
		}
	}
}
