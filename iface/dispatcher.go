package iface

import (
	"log/slog"
	"time"

	"github.com/soypat/utcp/internal/headers"
	"github.com/soypat/utcp/tcp"
)

// MaxFrameSize is the largest frame the dispatcher will parse, matching
// the TUN device's MTU plus a small margin (§4.3 "Reads frames of up to
// 1504 bytes").
const MaxFrameSize = 1504

// Sender writes one complete IPv4 datagram to the TUN device. Dispatch and
// the tick driver both use it to emit replies without holding Table's
// mutex across the syscall (§5 "Reads/writes the TUN without holding the
// table lock around the syscall when possible").
type Sender func(packet []byte) error

// Dispatch demultiplexes one inbound frame by four-tuple (§4.3 Packet
// dispatcher): existing connections are driven through OnSegment, and a
// bare SYN on a bound port starts a new handshake. Malformed frames are
// logged and dropped, never fatal to the worker.
func (t *Table) Dispatch(frame []byte, now time.Time, send Sender) {
	ip, err := headers.NewIPv4(frame)
	if err != nil {
		t.Error("dispatch:short-ip", slog.String("err", err.Error()))
		return
	}
	if ip.Protocol() != headers.ProtoTCP {
		return
	}
	tcpBuf := ip.Payload()
	seg, err := tcp.NewFrame(tcpBuf)
	if err != nil {
		t.Error("dispatch:short-tcp", slog.String("err", err.Error()))
		return
	}

	quad := tcp.Quad{
		RemoteAddr: ip.SourceAddr(),
		LocalAddr:  ip.DestinationAddr(),
		RemotePort: seg.SourcePort(),
		LocalPort:  seg.DestinationPort(),
	}
	segment := seg.Segment(len(tcpBuf))
	payload := seg.Payload(len(tcpBuf))

	t.mu.Lock()
	conn, exists := t.conns[quad]
	if exists {
		reply, hasReply, aborted := conn.OnSegment(segment, payload, now)
		if aborted {
			t.Remove(quad)
			t.rcvVar.Broadcast()
			t.mu.Unlock()
			return
		}
		t.rcvVar.Broadcast()
		if !hasReply {
			t.mu.Unlock()
			return
		}
		pkt := encodeReply(quad, reply, nil)
		t.mu.Unlock()
		if err := send(pkt); err != nil {
			t.Error("dispatch:send", slog.String("err", err.Error()))
		}
		return
	}

	if !t.HasListener(quad.LocalPort) || segment.Flags != tcp.FlagSYN {
		t.mu.Unlock()
		return
	}

	peerMSS, _ := tcp.ParseMSSOption(seg.Options())
	iss := t.NextISS(quad)
	conn = tcp.NewConnection(quad, make([]byte, RecvQueueSize), make([]byte, SendQueueSize))
	conn.SetLogger(t.Log)
	reply, err := conn.Accept(iss, segment, peerMSS, now)
	if err != nil {
		t.Error("dispatch:accept", slog.String("err", err.Error()))
		t.mu.Unlock()
		return
	}
	t.Insert(quad.LocalPort, quad, conn)
	t.Debug("dispatch:handshake", slog.Uint64("lport", uint64(quad.LocalPort)), slog.Uint64("rport", uint64(quad.RemotePort)))
	pkt := encodeSynAck(quad, reply, tcp.DefaultMSS)
	t.mu.Unlock()
	if err := send(pkt); err != nil {
		t.Error("dispatch:send", slog.String("err", err.Error()))
	}
}

// SendRST emits a bare RST segment for quad, e.g. when aborting every
// still-queued connection on listener close (§9 "Listener drop with
// pending Quads").
func SendRST(quad tcp.Quad, seq tcp.Value, send Sender) error {
	seg := tcp.Segment{SEQ: seq, Flags: tcp.FlagRST}
	return send(encodeReply(quad, seg, nil))
}

// encodeSynAck serializes a handshake SYN|ACK reply carrying a single MSS
// option advertising this stack's own receive capacity (§6 "the SYN|ACK
// advertises this implementation's MSS"; independent of the peer's own
// advertised MSS, which only bounds what this side may send).
func encodeSynAck(quad tcp.Quad, seg tcp.Segment, mss uint16) []byte {
	total := headers.SizeIPv4 + tcp.SizeHeader + int(tcp.MaxMSSOptionLen)
	buf := make([]byte, total)

	ip, _ := headers.NewIPv4(buf)
	ip.SetVersionIHL(0x45)
	ip.SetTotalLength(uint16(total))
	ip.SetID(0)
	ip.SetTTL(64)
	ip.SetProtocol(headers.ProtoTCP)
	ip.SetSourceAddr(quad.LocalAddr)
	ip.SetDestinationAddr(quad.RemoteAddr)
	ip.SetHeaderChecksum(0)
	ip.SetHeaderChecksum(ip.CalculateHeaderChecksum())

	tcpFrame, _ := tcp.NewFrame(buf[headers.SizeIPv4:])
	tcpFrame.SetSourcePort(quad.LocalPort)
	tcpFrame.SetDestinationPort(quad.RemotePort)
	headerWords := tcpFrame.SetMSSOption(mss)
	tcpFrame.SetSegment(seg, headerWords)
	tcpFrame.SetChecksum(0)
	tcpFrame.SetChecksum(tcp.ComputeChecksum(ip, buf[headers.SizeIPv4:]))

	return buf
}

// encodeReply serializes seg (addressed from quad's local side back to its
// remote side) plus payload into a freshly allocated IPv4+TCP packet,
// computing both checksums (§6 IPv4/TCP header templates).
func encodeReply(quad tcp.Quad, seg tcp.Segment, payload []byte) []byte {
	total := headers.SizeIPv4 + tcp.SizeHeader + len(payload)
	buf := make([]byte, total)

	ip, _ := headers.NewIPv4(buf)
	ip.SetVersionIHL(0x45)
	ip.SetTotalLength(uint16(total))
	ip.SetID(0)
	ip.SetTTL(64)
	ip.SetProtocol(headers.ProtoTCP)
	ip.SetSourceAddr(quad.LocalAddr)
	ip.SetDestinationAddr(quad.RemoteAddr)
	ip.SetHeaderChecksum(0)
	ip.SetHeaderChecksum(ip.CalculateHeaderChecksum())

	tcpFrame, _ := tcp.NewFrame(buf[headers.SizeIPv4:])
	tcpFrame.SetSourcePort(quad.LocalPort)
	tcpFrame.SetDestinationPort(quad.RemotePort)
	tcpFrame.SetSegment(seg, tcp.SizeHeader/4)
	copy(tcpFrame.RawData()[tcp.SizeHeader:], payload)
	tcpFrame.SetChecksum(0)
	tcpFrame.SetChecksum(tcp.ComputeChecksum(ip, buf[headers.SizeIPv4:]))

	return buf
}
