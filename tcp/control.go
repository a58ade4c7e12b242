package tcp

import (
	"log/slog"
	"math"

	"github.com/soypat/utcp/internal/xlog"
)

// ControlBlock holds the Send and Receive Sequence Spaces of a connection
// (RFC 793 §3.2) and the state it progresses through. It contains no
// buffers and performs no I/O: callers (Connection) drive it with accepted
// segments and read back what changed.
//
// LISTEN, SYN-SENT, CLOSE-WAIT, LAST-ACK and CLOSED are deliberately absent:
// this implementation only accepts connections (no active open) and only
// closes actively. A FIN received in ESTABLISHED is acknowledged (RCV.NXT
// moves past it) but leaves the state ESTABLISHED; there is no passive-close
// half of the state diagram.
type ControlBlock struct {
	snd     sendSpace
	rcv     recvSpace
	pending Flags
	state   State
	xlog.Logger
}

// sendSpace is the Send Sequence Space: sequence numbers of local data.
//
//	     1         2          3          4
//	----------|----------|----------|----------
//	       SND.UNA    SND.NXT    SND.UNA+SND.WND
//	1. old sequence numbers already acknowledged
//	2. sequence numbers of unacknowledged data
//	3. sequence numbers allowed for new data transmission
//	4. future sequence numbers not yet allowed
type sendSpace struct {
	ISS Value // initial send sequence number, fixed at connection accept
	UNA Value // oldest unacknowledged byte
	NXT Value // next sequence number to assign
	WND Size  // peer's advertised receive window
}

// recvSpace is the Receive Sequence Space: sequence numbers of remote data.
type recvSpace struct {
	IRS Value // initial receive sequence number, taken from the peer's SYN
	NXT Value // next expected sequence number
	WND Size  // window advertised to the peer
}

// State returns the current connection state.
func (cb *ControlBlock) State() State { return cb.state }

// ISS returns the connection's initial send sequence number.
func (cb *ControlBlock) ISS() Value { return cb.snd.ISS }

// SndUNA, SndNXT, SndWND expose the send sequence space for callers
// composing outbound segments and computing in-flight/unsent byte counts.
func (cb *ControlBlock) SndUNA() Value { return cb.snd.UNA }
func (cb *ControlBlock) SndNXT() Value { return cb.snd.NXT }
func (cb *ControlBlock) SndWND() Size  { return cb.snd.WND }

// RcvNXT and RcvWND expose the receive sequence space.
func (cb *ControlBlock) RcvNXT() Value { return cb.rcv.NXT }
func (cb *ControlBlock) RcvWND() Size  { return cb.rcv.WND }

// SetRcvWND updates the advertised receive window, recomputed by Connection
// from its incoming buffer's free space on every emission (corrected per
// the documented advertised-window fix: capacity(incoming) − len(incoming),
// rather than echoing the peer's window).
func (cb *ControlBlock) SetRcvWND(wnd Size) { cb.rcv.WND = wnd }

// InFlight returns the number of unacknowledged bytes sent (SND.NXT − SND.UNA).
func (cb *ControlBlock) InFlight() Size { return Sub(cb.snd.NXT, cb.snd.UNA) }

// accept performs the passive-open handshake (§4.2 Accept): given the
// peer's initial SYN segment and our chosen ISS, initializes both sequence
// spaces and moves to SYN-RCVD. The caller is responsible for emitting the
// resulting SYN|ACK (SND.NXT is left at ISS; it advances to ISS+1 only once
// the caller records the SYN as transmitted, via Connection.commitEmit).
func (cb *ControlBlock) accept(iss Value, syn Segment) error {
	if !syn.Flags.HasAll(FlagSYN) || syn.Flags.HasAny(FlagACK) {
		return errBadSegment
	}
	wnd := syn.WND
	if wnd > maxWindow {
		wnd = maxWindow
	}
	cb.snd = sendSpace{ISS: iss, UNA: iss, NXT: iss, WND: wnd}
	cb.rcv = recvSpace{IRS: syn.SEQ, NXT: Add(syn.SEQ, 1), WND: 0}
	cb.state = StateSynRcvd
	cb.pending = 0
	cb.Trace("tcb:accept", slog.Uint64("iss", uint64(iss)), slog.Uint64("irs", uint64(syn.SEQ)))
	return nil
}

// close implements the application's close() call (§4.5 Stream API / §4.2
// State machine): in ESTABLISHED it schedules a FIN after unacked drains by
// transitioning to FIN_WAIT_1; any other live state besides SYN_RCVD
// (which has not yet delivered any payload to drain) cannot close cleanly.
func (cb *ControlBlock) close() error {
	switch cb.state {
	case StateEstablished:
		cb.state = StateFinWait1
	case StateSynRcvd:
		cb.state = StateFinWait1
	case StateFinWait1, StateFinWait2, StateClosing, StateTimeWait:
		return errInvalidState
	default:
		return errInvalidState
	}
	cb.Trace("tcb:close", slog.String("state", cb.state.String()))
	return nil
}

// onAckAdvance applies an accepted segment's ACK field to the send sequence
// space (on_packet steps 3-5), returning the number of newly-acknowledged
// sequence octets, SYN and FIN octets included (0 if the ACK did not advance
// UNA), so Connection can drain `unacked` and retire send_times entries. synRcvdReject reports RFC 793 §3.4 case 2:
// the connection was half-open (SynRcvd) and the ACK field fell outside
// [SND.UNA, SND.NXT], which the caller must answer with a RST carrying
// seq = segment.ACK rather than silently dropping.
func (cb *ControlBlock) onAckAdvance(seg Segment) (ackedBytes Size, synRcvdReject bool) {
	if !seg.Flags.HasAny(FlagACK) {
		return 0, false
	}
	a := seg.ACK
	if cb.state == StateSynRcvd {
		if !IsBetweenWrapping(cb.snd.UNA-1, a, Add(cb.snd.NXT, 1)) {
			return 0, true
		}
		cb.state = StateEstablished
		cb.Trace("tcb:established")
		// Fall through to step 4 using the just-entered state: a single
		// segment may both complete the handshake and advance UNA past
		// the SYN, which the unacked buffer's offset arithmetic relies on.
	}
	switch cb.state {
	case StateEstablished, StateFinWait1, StateFinWait2, StateClosing:
		if !IsBetweenWrapping(cb.snd.UNA, a, Add(cb.snd.NXT, 1)) {
			return 0, false
		}
		ackedBytes = Sub(a, cb.snd.UNA)
		cb.snd.UNA = a
		if cb.state == StateFinWait1 && cb.snd.UNA == Add(cb.snd.ISS, 2) {
			cb.state = StateFinWait2
			cb.Trace("tcb:finwait2")
		} else if cb.state == StateClosing {
			cb.state = StateTimeWait
			cb.Trace("tcb:timewait")
		}
		return ackedBytes, false
	default:
		return 0, false
	}
}

// onFin applies FIN processing (§4.2 step 7 and the FIN_WAIT_1/CLOSING
// transitions of the state table): called once per accepted segment that
// carries FIN, after data ingress has advanced RCV.NXT past it.
func (cb *ControlBlock) onFin() {
	switch cb.state {
	case StateFinWait1:
		cb.state = StateClosing
		cb.Trace("tcb:closing")
	case StateFinWait2:
		cb.state = StateTimeWait
		cb.Trace("tcb:timewait")
	}
}

// rcvAdvance moves RCV.NXT forward by delta octets, used after data
// ingress (including any FIN octet) advances the receive sequence space.
func (cb *ControlBlock) rcvAdvance(delta Size) { cb.rcv.NXT = Add(cb.rcv.NXT, delta) }

// setSndWND updates the peer's advertised window, applied unconditionally
// on every accepted segment per RFC 793 window-update handling. A window
// larger than a 16-bit field can hold (only reachable from a malformed or
// adversarial segment, since Frame.WindowSize reads a real uint16 off the
// wire) is clamped rather than trusted outright, mirroring the reference's
// errWindowTooLarge guard.
func (cb *ControlBlock) setSndWND(wnd Size) {
	if wnd > maxWindow {
		wnd = maxWindow
	}
	cb.snd.WND = wnd
}

// advanceSndNXT forces SND.NXT forward to seq if seq is ahead, used by
// write_segment to record the sequence consumed by an emission (§4.2
// Outbound emission step "If wrapping_lt(SND.NXT, next_seq)").
func (cb *ControlBlock) advanceSndNXT(seq Value) {
	if WrappingLT(cb.snd.NXT, seq) {
		cb.snd.NXT = seq
	}
}

// forceSndNXT sets SND.NXT unconditionally, used by retransmission (§4.2
// on_tick step 2: "force SND.NXT = SND.UNA + resend") since a retransmit
// can legitimately move NXT backward relative to an in-progress partial
// send before the retransmission collapses it.
func (cb *ControlBlock) forceSndNXT(seq Value) { cb.snd.NXT = seq }

const maxWindow = math.MaxUint16
