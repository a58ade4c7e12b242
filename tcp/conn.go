package tcp

import (
	"log/slog"
	"time"

	"github.com/soypat/utcp/internal/xlog"
)

// DefaultMSS is the maximum segment payload this implementation will ever
// emit absent a smaller peer-advertised MSS: 1500 (Ethernet/TUN MTU) minus
// a 20-byte IPv4 header and a 20-byte TCP header (§6 "this implementation
// caps each segment at MTU").
const DefaultMSS = 1500 - SizeIPv4Header - SizeHeader

// SizeIPv4Header mirrors headers.SizeIPv4, restated here so tcp does not
// need to import internal/headers just for this constant.
const SizeIPv4Header = 20

// SendQueueSize is the fixed capacity of a connection's outbound (unacked)
// buffer; Write reports would-block once it is full (§4.5 Stream API).
const SendQueueSize = 1024

// RecvQueueSize is the fixed capacity of a connection's inbound (incoming)
// buffer.
const RecvQueueSize = 4096

// Quad is the four-tuple identifying a TCP flow: remote and local
// IPv4 address/port pairs, from the local host's point of view.
type Quad struct {
	RemoteAddr [4]byte
	LocalAddr  [4]byte
	RemotePort uint16
	LocalPort  uint16
}

// Connection is a single TCP flow's engine: the ControlBlock's sequence
// spaces and state, the two circular byte buffers, and the retransmission
// timer (§3 Data model "Connection"). It owns no lock; every method assumes
// the caller already holds the owning table's mutex, matching the "one big
// lock" concurrency model driving it.
type Connection struct {
	Quad Quad

	cb ControlBlock

	incoming ring // received, ACKed data not yet read by the application
	unacked  ring // data handed to the stack, [0,nxt-una) on the wire, rest queued

	closed      bool  // application requested close; FIN scheduled once unacked drains
	closedAt    Value // sequence number occupied by the FIN, once emitted
	closedAtSet bool

	timer rtxTimer

	peerMSS   uint16
	txScratch [DefaultMSS]byte

	xlog.Logger
}

// NewConnection allocates a Connection with the given receive/send buffer
// backing arrays. rxBuf and txBuf are not copied; the caller should not
// reuse them elsewhere.
func NewConnection(quad Quad, rxBuf, txBuf []byte) *Connection {
	return &Connection{
		Quad:     quad,
		incoming: newRing(rxBuf),
		unacked:  newRing(txBuf),
		timer:    newRtxTimer(),
		peerMSS:  DefaultMSS,
	}
}

// SetLogger installs l on both the connection and its embedded control
// block so state transitions and segment traces share one sink.
func (c *Connection) SetLogger(l *slog.Logger) {
	c.Logger.SetLogger(l)
	c.cb.SetLogger(l)
}

// State returns the connection's current TCP state.
func (c *Connection) State() State { return c.cb.State() }

// SndNXT returns the next sequence number this connection would send,
// useful for composing a RST for a connection being discarded outright
// (e.g. aborting a listener's pending backlog) rather than driven through
// the normal OnSegment/OnTick path.
func (c *Connection) SndNXT() Value { return c.cb.SndNXT() }

// BufferedInput returns the number of bytes available for Read.
func (c *Connection) BufferedInput() int { return c.incoming.Len() }

// BufferedUnsent returns the number of bytes still queued (handed to
// Write but not yet placed on the wire, nor the unacked-but-sent tail).
func (c *Connection) BufferedUnsent() int {
	if n := c.unacked.Len() - int(c.cb.InFlight()); n > 0 {
		return n
	}
	return 0
}

// Accept performs the passive-open handshake (§4.2 Accept) against an
// inbound SYN segment, using iss as this connection's initial send
// sequence number, and returns the SYN|ACK to transmit.
// peerMSS is the peer's advertised MSS option value from its SYN, or 0 if
// it sent none (in which case this connection keeps the DefaultMSS it was
// constructed with).
func (c *Connection) Accept(iss Value, syn Segment, peerMSS uint16, now time.Time) (reply Segment, err error) {
	if err = c.cb.accept(iss, syn); err != nil {
		return Segment{}, err
	}
	if peerMSS > 0 {
		c.peerMSS = peerMSS
	}
	// Advertise our real receive capacity rather than echoing the peer's
	// window, per the corrected advertised-window contract (see DESIGN.md).
	c.cb.SetRcvWND(Size(c.incoming.Free()))
	reply = Segment{SEQ: iss, ACK: c.cb.RcvNXT(), WND: c.cb.RcvWND(), Flags: synack}
	c.commitEmit(reply, now)
	return reply, nil
}

// bareACK composes an empty acknowledgment reflecting current send/receive
// state, used both to reject an unacceptable segment and to ack accepted
// data (§4.2 on_packet steps 1 and 6).
func (c *Connection) bareACK() Segment {
	return Segment{SEQ: c.cb.SndNXT(), ACK: c.cb.RcvNXT(), WND: c.cb.RcvWND(), Flags: FlagACK}
}

// OnSegment processes one inbound, already-demultiplexed segment (§4.2
// Inbound segment handling). payload is the segment's data octets. It
// returns the segment to transmit in reply, if any, and whether the
// connection must be torn down (an incoming RST matching RCV.NXT).
func (c *Connection) OnSegment(seg Segment, payload []byte, now time.Time) (reply Segment, hasReply bool, aborted bool) {
	// Refresh the advertised window from current buffer occupancy before
	// using it in the acceptance test or any reply.
	c.cb.SetRcvWND(Size(c.incoming.Free()))

	l := seg.LEN()
	if !segmentAcceptable(seg.SEQ, l, c.cb.RcvNXT(), c.cb.RcvWND()) {
		c.Trace("conn:reject", slog.Uint64("seq", uint64(seg.SEQ)), slog.Uint64("rcv.nxt", uint64(c.cb.RcvNXT())))
		return c.bareACK(), true, false
	}

	// RFC 793 §3.4 RST handling, supplementing the reference's omission
	// (flagged in §9): only believable (seq == RCV.NXT) resets tear down
	// the connection; anything else in-window but off-point is dropped.
	if seg.Flags.HasAny(FlagRST) {
		if seg.SEQ == c.cb.RcvNXT() {
			c.Trace("conn:rst")
			return Segment{}, false, true
		}
		return Segment{}, false, false
	}

	if !seg.Flags.HasAny(FlagACK) {
		return Segment{}, false, false
	}

	oldUNA := c.cb.SndUNA()
	acked, synRcvdReject := c.cb.onAckAdvance(seg)
	if synRcvdReject {
		// RFC 793 §3.4 case 2: half-open and the peer's ACK field names a
		// byte we never sent. Tell them so without tearing down our own
		// (still-valid) half-open state.
		c.Trace("conn:synrcvd-reject", slog.Uint64("ack", uint64(seg.ACK)))
		return Segment{SEQ: seg.ACK, Flags: FlagRST}, true, false
	}
	if acked > 0 {
		// The SYN and FIN octets occupy sequence space but no byte of unacked.
		drain := int(acked)
		if oldUNA == c.cb.ISS() {
			drain--
		}
		if drain > c.unacked.Len() {
			drain = c.unacked.Len()
		}
		c.unacked.Discard(drain)
		c.timer.retire(oldUNA, seg.ACK, now)
	}
	c.cb.setSndWND(seg.WND)

	emit := false
	switch c.cb.State() {
	case StateEstablished, StateFinWait1, StateFinWait2:
		unreadOffset := Sub(c.cb.RcvNXT(), seg.SEQ)
		if unreadOffset > Size(len(payload)) {
			unreadOffset = 0
		}
		data := payload[unreadOffset:]
		if len(data) > 0 {
			c.incoming.Write(data)
		}
		adv := Size(len(data))
		hasFin := seg.Flags.HasAny(FlagFIN)
		if hasFin {
			adv++
		}
		c.cb.rcvAdvance(adv)
		emit = true
		if hasFin {
			c.cb.onFin()
		}
	}
	c.cb.SetRcvWND(Size(c.incoming.Free()))
	if emit {
		return c.bareACK(), true, false
	}
	return Segment{}, false, false
}

// commitEmit advances SND.NXT past a just-transmitted segment and records
// its transmission time, per write_segment's final two steps.
func (c *Connection) commitEmit(seg Segment, now time.Time) {
	nextSeq := Add(seg.SEQ, seg.LEN())
	c.cb.advanceSndNXT(nextSeq)
	c.timer.record(seg.SEQ, now)
}

// WriteSegment composes and records one outbound segment starting at seq,
// copying up to len(payloadBuf) bytes from the unacked buffer at the
// matching offset (§4.2 Outbound emission). The caller supplies flags
// (e.g. FlagACK, optionally FlagFIN) and sizes payloadBuf to respect the
// peer's window and MSS; WriteSegment itself only clamps to the amount of
// data actually buffered.
func (c *Connection) WriteSegment(seq Value, flags Flags, payloadBuf []byte, now time.Time) (seg Segment, n int) {
	offset := int(Sub(seq, c.cb.SndUNA()))
	n = c.unacked.Peek(payloadBuf, offset)
	seg = Segment{SEQ: seq, ACK: c.cb.RcvNXT(), WND: c.cb.RcvWND(), Flags: flags, DATALEN: Size(n)}
	c.commitEmit(seg, now)
	return seg, n
}

// OnTick drives retransmission and new-data transmission (§4.2 on_tick).
// It returns the segment to transmit and its payload (a view into the
// connection's internal scratch buffer, valid until the next OnTick/Accept
// call), or hasSegment=false if there is nothing to send.
func (c *Connection) OnTick(now time.Time) (seg Segment, payload []byte, hasSegment bool) {
	una := c.cb.SndUNA()
	nunacked := c.cb.InFlight()
	// InFlight counts an outstanding SYN or FIN octet, which has no byte in
	// unacked; clamp so that case does not wrap into a huge unsent count.
	var unsentSize Size
	if buffered := Size(c.unacked.Len()); buffered > nunacked {
		unsentSize = buffered - nunacked
	}

	if overdue, age := c.timer.earliestOverdue(una, now); overdue {
		total := c.unacked.Len()
		resend := total
		if resend > int(c.cb.SndWND()) {
			resend = int(c.cb.SndWND())
		}
		if resend > int(c.peerMSS) {
			resend = int(c.peerMSS)
		}
		flags := FlagACK
		if c.closed && resend == total {
			flags |= FlagFIN
			c.closedAt = Add(una, Size(resend))
			c.closedAtSet = true
		}
		buf := c.txScratch[:clampInt(resend, len(c.txScratch))]
		c.timer.discardFrom(una)
		var n int
		seg, n = c.WriteSegment(una, flags, buf, now)
		c.cb.forceSndNXT(Add(una, seg.LEN()))
		c.Trace("conn:retransmit", slog.Duration("age", age), slog.Int("n", n))
		return seg, c.txScratch[:n], true
	}

	// A closed connection with nothing left buffered still owes the peer a
	// FIN; that case falls through to this branch with unsentSize==0 so
	// the FIN gets its own (zero-payload) segment rather than only ever
	// piggybacking on data that may never arrive.
	finPending := c.closed && !c.closedAtSet
	if (unsentSize > 0 || finPending) && c.cb.SndWND() > nunacked {
		room := c.cb.SndWND() - nunacked
		if room > Size(c.peerMSS) {
			room = Size(c.peerMSS)
		}
		send := unsentSize
		if send > room {
			send = room
		}
		flags := FlagACK
		closesNow := finPending && send == unsentSize
		if closesNow {
			flags |= FlagFIN
		}
		buf := c.txScratch[:clampInt(int(send), len(c.txScratch))]
		n := c.unacked.Peek(buf, int(nunacked))
		seg = Segment{SEQ: c.cb.SndNXT(), ACK: c.cb.RcvNXT(), WND: c.cb.RcvWND(), Flags: flags, DATALEN: Size(n)}
		if closesNow {
			c.closedAt = Add(seg.SEQ, seg.LEN()-1)
			c.closedAtSet = true
		}
		c.commitEmit(seg, now)
		return seg, c.txScratch[:n], true
	}

	return Segment{}, nil, false
}

func clampInt(v, max int) int {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

// Close requests a graceful shutdown (§4.5 "Stream drop should send a
// FIN"): marks the connection closed so OnTick schedules a FIN once
// unacked drains, per the close()/FIN_WAIT_1 transition.
func (c *Connection) Close() error {
	if err := c.cb.close(); err != nil {
		return err
	}
	c.closed = true
	return nil
}

// Read copies up to len(p) bytes from the incoming buffer and returns the
// byte count, 0 when the buffer is empty (§4.5 read()). Mapping an empty
// buffer after the peer's FIN to io.EOF is the caller's responsibility.
func (c *Connection) Read(p []byte) (n int) { return c.incoming.Read(p) }

// Write appends p to the outbound queue, returning errWouldBlock without
// writing anything if the queue has no free space at all (§4.5 write()).
func (c *Connection) Write(p []byte) (n int, err error) {
	if c.unacked.Free() == 0 && len(p) > 0 {
		return 0, errWouldBlock
	}
	return c.unacked.Write(p), nil
}

// Flush reports whether the outbound queue is fully drained (§4.5 flush()).
func (c *Connection) Flush() error {
	if c.unacked.Len() != 0 {
		return errWouldBlock
	}
	return nil
}
