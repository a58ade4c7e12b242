package tcp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/utcp/internal/headers"
)

// SizeHeader is the fixed (no-options) TCP header length in bytes.
const SizeHeader = 20

// MaxMSSOptionLen is the length in bytes of an MSS-only options block.
const MaxMSSOptionLen = 4

var errShortTCP = errors.New("tcp: buffer shorter than TCP header")

// Frame wraps a byte slice holding a TCP segment (header, optional options,
// and payload) and provides typed field accessors over the wire encoding.
type Frame struct {
	buf []byte
}

// NewFrame wraps buf, which must be at least SizeHeader bytes, as a TCP
// frame view. The returned Frame aliases buf.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < SizeHeader {
		return Frame{}, errShortTCP
	}
	return Frame{buf: buf}, nil
}

func (f Frame) RawData() []byte { return f.buf }

func (f Frame) SourcePort() uint16      { return binary.BigEndian.Uint16(f.buf[0:2]) }
func (f Frame) SetSourcePort(p uint16)  { binary.BigEndian.PutUint16(f.buf[0:2], p) }
func (f Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(f.buf[2:4]) }
func (f Frame) SetDestinationPort(p uint16) {
	binary.BigEndian.PutUint16(f.buf[2:4], p)
}

func (f Frame) Seq() Value     { return Value(binary.BigEndian.Uint32(f.buf[4:8])) }
func (f Frame) SetSeq(v Value) { binary.BigEndian.PutUint32(f.buf[4:8], uint32(v)) }
func (f Frame) Ack() Value     { return Value(binary.BigEndian.Uint32(f.buf[8:12])) }
func (f Frame) SetAck(v Value) { binary.BigEndian.PutUint32(f.buf[8:12], uint32(v)) }

// OffsetAndFlags returns the data offset (header length in 32-bit words) and
// the control-bit flags.
func (f Frame) OffsetAndFlags() (dataOffset uint8, flags Flags) {
	dataOffset = f.buf[12] >> 4
	flags = Flags(binary.BigEndian.Uint16(f.buf[12:14]) & 0x3f)
	return dataOffset, flags
}

// SetOffsetAndFlags sets the data offset (in 32-bit words) and flags.
func (f Frame) SetOffsetAndFlags(dataOffset uint8, flags Flags) {
	f.buf[12] = dataOffset << 4
	f.buf[13] = byte(flags)
}

func (f Frame) HeaderLength() int { doff, _ := f.OffsetAndFlags(); return int(doff) * 4 }

func (f Frame) WindowSize() uint16     { return binary.BigEndian.Uint16(f.buf[14:16]) }
func (f Frame) SetWindowSize(w uint16) { binary.BigEndian.PutUint16(f.buf[14:16], w) }
func (f Frame) Checksum() uint16       { return binary.BigEndian.Uint16(f.buf[16:18]) }
func (f Frame) SetChecksum(cs uint16)  { binary.BigEndian.PutUint16(f.buf[16:18], cs) }
func (f Frame) UrgentPtr() uint16      { return binary.BigEndian.Uint16(f.buf[18:20]) }
func (f Frame) SetUrgentPtr(p uint16)  { binary.BigEndian.PutUint16(f.buf[18:20], p) }

// Options returns the options portion of the header, which this
// implementation only ever populates with a single MSS option (or leaves
// empty), per spec.md's Non-goal of options beyond MSS.
func (f Frame) Options() []byte {
	return f.buf[SizeHeader:f.HeaderLength()]
}

// Payload returns the segment payload following the header and options.
// totalLen is the total segment length (header+options+payload), as
// recovered from the enclosing IPv4 TotalLength field.
func (f Frame) Payload(totalLen int) []byte {
	off := f.HeaderLength()
	if totalLen > len(f.buf) {
		totalLen = len(f.buf)
	}
	return f.buf[off:totalLen]
}

// Segment reads the sequence/ack/window/flags fields as a Segment, with
// DATALEN computed from totalLen (the IPv4 payload length).
func (f Frame) Segment(totalLen int) Segment {
	_, flags := f.OffsetAndFlags()
	return Segment{
		SEQ:     f.Seq(),
		ACK:     f.Ack(),
		WND:     Size(f.WindowSize()),
		Flags:   flags,
		DATALEN: Size(len(f.Payload(totalLen))),
	}
}

// SetSegment writes seg's SEQ/ACK/WND/Flags fields and the data offset
// (header length in 32-bit words, including options).
func (f Frame) SetSegment(seg Segment, headerWords uint8) {
	f.SetSeq(seg.SEQ)
	f.SetAck(seg.ACK)
	f.SetWindowSize(uint16(seg.WND))
	f.SetOffsetAndFlags(headerWords, seg.Flags)
}

// SetMSSOption writes a single maximum-segment-size option into
// f.buf[SizeHeader : SizeHeader+MaxMSSOptionLen] and returns the header
// length in 32-bit words (6, i.e. 24 bytes) for use with SetSegment.
func (f Frame) SetMSSOption(mss uint16) uint8 {
	opts := f.buf[SizeHeader : SizeHeader+MaxMSSOptionLen]
	opts[0] = optMSS
	opts[1] = MaxMSSOptionLen
	binary.BigEndian.PutUint16(opts[2:4], mss)
	return (SizeHeader + MaxMSSOptionLen) / 4
}

const optMSS = 2

// ParseMSSOption scans a TCP options block for an MSS option, per
// spec.md's Non-goal of supporting any option other than MSS: any other
// option kind is skipped over using its length byte, never interpreted.
func ParseMSSOption(opts []byte) (mss uint16, ok bool) {
	off := 0
	for off < len(opts) {
		kind := opts[off]
		if kind == 0 { // end of option list
			break
		}
		if kind == 1 { // no-op
			off++
			continue
		}
		if off+1 >= len(opts) {
			break
		}
		size := int(opts[off+1])
		if size < 2 || off+size > len(opts) {
			break
		}
		if kind == optMSS && size == MaxMSSOptionLen {
			mss = binary.BigEndian.Uint16(opts[off+2 : off+4])
			ok = true
		}
		off += size
	}
	return mss, ok
}

// ComputeChecksum computes the TCP checksum over the IPv4 pseudo-header and
// the TCP header+options+payload, per RFC 793 §3.1. The checksum field in
// tcpSegment must be zeroed by the caller before calling this (SetChecksum(0)).
func ComputeChecksum(ip headers.IPv4, tcpSegment []byte) uint16 {
	var c headers.Checksum
	ip.WriteTCPPseudoHeader(&c, uint16(len(tcpSegment)))
	c.Write(tcpSegment)
	return c.Sum16()
}
