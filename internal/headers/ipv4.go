package headers

import (
	"encoding/binary"
	"errors"
)

// IPv4 protocol numbers this module cares about.
const (
	ProtoTCP = 6
)

// SizeIPv4 is the fixed (no-options) IPv4 header length in bytes.
const SizeIPv4 = 20

var errShortIPv4 = errors.New("headers: buffer shorter than IPv4 header")

// IPv4 wraps a byte slice holding a fixed-length (IHL=5, no options) IPv4
// header and provides typed field accessors. Field layout per RFC 791.
type IPv4 struct {
	buf []byte
}

// NewIPv4 wraps buf, which must be at least SizeIPv4 bytes, as an IPv4
// header view. The returned header aliases buf.
func NewIPv4(buf []byte) (IPv4, error) {
	if len(buf) < SizeIPv4 {
		return IPv4{}, errShortIPv4
	}
	return IPv4{buf: buf}, nil
}

func (h IPv4) RawData() []byte { return h.buf }

func (h IPv4) VersionIHL() uint8     { return h.buf[0] }
func (h IPv4) IHL() int              { return int(h.buf[0]&0xf) * 4 }
func (h IPv4) SetVersionIHL(v uint8) { h.buf[0] = v }

func (h IPv4) TotalLength() uint16        { return binary.BigEndian.Uint16(h.buf[2:4]) }
func (h IPv4) SetTotalLength(tl uint16)   { binary.BigEndian.PutUint16(h.buf[2:4], tl) }
func (h IPv4) ID() uint16                 { return binary.BigEndian.Uint16(h.buf[4:6]) }
func (h IPv4) SetID(id uint16)            { binary.BigEndian.PutUint16(h.buf[4:6], id) }
func (h IPv4) TTL() uint8                 { return h.buf[8] }
func (h IPv4) SetTTL(ttl uint8)           { h.buf[8] = ttl }
func (h IPv4) Protocol() uint8            { return h.buf[9] }
func (h IPv4) SetProtocol(proto uint8)    { h.buf[9] = proto }
func (h IPv4) HeaderChecksum() uint16     { return binary.BigEndian.Uint16(h.buf[10:12]) }
func (h IPv4) SetHeaderChecksum(cs uint16) {
	binary.BigEndian.PutUint16(h.buf[10:12], cs)
}

func (h IPv4) SourceAddr() [4]byte      { return [4]byte(h.buf[12:16]) }
func (h IPv4) DestinationAddr() [4]byte { return [4]byte(h.buf[16:20]) }

func (h IPv4) SetSourceAddr(a [4]byte)      { copy(h.buf[12:16], a[:]) }
func (h IPv4) SetDestinationAddr(a [4]byte) { copy(h.buf[16:20], a[:]) }

// Payload returns the bytes following the (fixed-length) header, up to
// TotalLength.
func (h IPv4) Payload() []byte {
	tl := int(h.TotalLength())
	if tl > len(h.buf) {
		tl = len(h.buf)
	}
	return h.buf[SizeIPv4:tl]
}

// CalculateHeaderChecksum computes the IPv4 header checksum over the fixed
// 20-byte header with the checksum field itself treated as zero.
func (h IPv4) CalculateHeaderChecksum() uint16 {
	var c Checksum
	c.Write(h.buf[0:10])
	c.Write(h.buf[12:20])
	return c.Sum16()
}

// WriteTCPPseudoHeader folds the IPv4 pseudo-header (RFC 793 §3.1) used for
// the TCP checksum into c: source/destination address, zero byte, protocol,
// and TCP segment length (header+payload, i.e. TotalLength minus the IPv4
// header length).
func (h IPv4) WriteTCPPseudoHeader(c *Checksum, tcpLen uint16) {
	src := h.SourceAddr()
	dst := h.DestinationAddr()
	c.Write(src[:])
	c.Write(dst[:])
	c.AddUint16(uint16(ProtoTCP))
	c.AddUint16(tcpLen)
}
