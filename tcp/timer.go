package tcp

import "time"

// initialSRTT is the smoothed round-trip-time estimate a connection starts
// with, before any segment has been acked on first transmission.
const initialSRTT = 120 * time.Second

// minRTO bounds how long on_tick waits, together with 1.5·srtt, before
// considering a send_times entry overdue (§4.2 on_tick step 2).
const minRTO = 1 * time.Second

// srttAlpha is the EWMA weight given to the existing estimate on every
// update: srtt ← 0.8·srtt + 0.2·sample.
const srttAlpha = 0.8

// rtxTimer tracks per-segment transmission times keyed by starting sequence
// number, and the smoothed RTT derived from first-transmission ACKs. It is
// the `timer` sub-structure of a Connection (§3 Data model).
type rtxTimer struct {
	sendTimes map[Value]time.Time
	// retransmitted holds the sendTimes keys last recorded by a
	// retransmission; retire takes no SRTT sample from them.
	retransmitted map[Value]bool
	srtt          time.Duration
}

func newRtxTimer() rtxTimer {
	return rtxTimer{sendTimes: make(map[Value]time.Time), retransmitted: make(map[Value]bool), srtt: initialSRTT}
}

// record notes that the segment starting at seq was transmitted at now,
// per write_segment's "Record send_times[seq] = now".
func (t *rtxTimer) record(seq Value, now time.Time) {
	t.sendTimes[seq] = now
}

// retire removes every recorded send_time with key in the half-open range
// [una, ack), per on_packet step 4. An entry acked on its first
// transmission is folded into the SRTT estimate; an entry marked by
// discardFrom as retransmitted is removed without an SRTT sample.
func (t *rtxTimer) retire(una, ack Value, now time.Time) {
	for seq, sent := range t.sendTimes {
		if IsBetweenWrapping(una-1, seq, ack) || seq == una {
			if !t.retransmitted[seq] {
				sample := now.Sub(sent)
				t.srtt = time.Duration(srttAlpha*float64(t.srtt) + (1-srttAlpha)*float64(sample))
			}
			delete(t.retransmitted, seq)
			delete(t.sendTimes, seq)
		}
	}
}

// discardFrom drops every recorded send_time with key ≥ una without folding
// it into SRTT, used when a retransmission collapses several outstanding
// segments into one (the retransmitted segment's own record call then
// re-adds a single fresh entry at una), and marks una as retransmitted.
func (t *rtxTimer) discardFrom(una Value) {
	for seq := range t.sendTimes {
		if seq == una || WrappingLT(una, seq) {
			delete(t.sendTimes, seq)
			delete(t.retransmitted, seq)
		}
	}
	t.retransmitted[una] = true
}

// earliestOverdue reports whether the earliest recorded send_time with key
// ≥ una is older than both minRTO and 1.5·srtt (§4.2 on_tick step 2), and
// returns its age for logging.
func (t *rtxTimer) earliestOverdue(una Value, now time.Time) (overdue bool, age time.Duration) {
	var earliest time.Time
	found := false
	for seq, sent := range t.sendTimes {
		if seq != una && !WrappingLT(una, seq) {
			continue
		}
		if !found || sent.Before(earliest) {
			earliest = sent
			found = true
		}
	}
	if !found {
		return false, 0
	}
	age = now.Sub(earliest)
	threshold := t.srtt + t.srtt/2
	return age > minRTO && time.Duration(age) > threshold, age
}

// reset clears all timer state, used when a connection is torn down.
func (t *rtxTimer) reset() {
	clear(t.sendTimes)
	clear(t.retransmitted)
	t.srtt = initialSRTT
}
