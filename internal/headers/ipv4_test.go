package headers

import "testing"

func TestIPv4FieldRoundTrip(t *testing.T) {
	buf := make([]byte, SizeIPv4+4)
	h, err := NewIPv4(buf)
	if err != nil {
		t.Fatalf("NewIPv4: %v", err)
	}
	h.SetVersionIHL(0x45)
	h.SetTotalLength(24)
	h.SetID(0xBEEF)
	h.SetTTL(64)
	h.SetProtocol(ProtoTCP)
	h.SetSourceAddr([4]byte{192, 168, 1, 1})
	h.SetDestinationAddr([4]byte{192, 168, 1, 2})

	if h.IHL() != SizeIPv4 {
		t.Errorf("IHL = %d, want %d", h.IHL(), SizeIPv4)
	}
	if h.TotalLength() != 24 {
		t.Errorf("TotalLength = %d, want 24", h.TotalLength())
	}
	if h.ID() != 0xBEEF {
		t.Errorf("ID = %#x, want 0xBEEF", h.ID())
	}
	if h.TTL() != 64 {
		t.Errorf("TTL = %d, want 64", h.TTL())
	}
	if h.Protocol() != ProtoTCP {
		t.Errorf("Protocol = %d, want %d", h.Protocol(), ProtoTCP)
	}
	if h.SourceAddr() != [4]byte{192, 168, 1, 1} {
		t.Errorf("SourceAddr = %v, want 192.168.1.1", h.SourceAddr())
	}
	if h.DestinationAddr() != [4]byte{192, 168, 1, 2} {
		t.Errorf("DestinationAddr = %v, want 192.168.1.2", h.DestinationAddr())
	}
	if len(h.Payload()) != 4 {
		t.Errorf("Payload length = %d, want 4", len(h.Payload()))
	}
}

func TestIPv4HeaderChecksumSelfVerifies(t *testing.T) {
	buf := make([]byte, SizeIPv4)
	h, _ := NewIPv4(buf)
	h.SetVersionIHL(0x45)
	h.SetTotalLength(SizeIPv4)
	h.SetID(1)
	h.SetTTL(64)
	h.SetProtocol(ProtoTCP)
	h.SetSourceAddr([4]byte{10, 0, 0, 1})
	h.SetDestinationAddr([4]byte{10, 0, 0, 2})

	h.SetHeaderChecksum(0)
	cs := h.CalculateHeaderChecksum()
	h.SetHeaderChecksum(cs)

	// Recomputing over the header with a correct checksum field in place
	// (rather than zeroed) must fold to all-ones, i.e. Sum16() == 0.
	var c Checksum
	c.Write(buf[0:10])
	c.Write(buf[10:20])
	if got := c.Sum16(); got != 0 {
		t.Errorf("checksum self-verification failed: Sum16() = %#x, want 0", got)
	}
}

func TestChecksumOddLength(t *testing.T) {
	var c Checksum
	c.Write([]byte{0x00, 0x01, 0x02}) // odd length: last byte padded low
	// 0x0001 + 0x0200 = 0x0201
	if got := c.Sum16(); got != ^uint16(0x0201) {
		t.Errorf("Sum16() = %#x, want %#x", got, ^uint16(0x0201))
	}
}
