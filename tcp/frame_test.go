package tcp

import "testing"

func TestFrameFieldRoundTrip(t *testing.T) {
	buf := make([]byte, SizeHeader+4)
	f, err := NewFrame(buf)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	f.SetSourcePort(1234)
	f.SetDestinationPort(80)
	f.SetSeq(0xDEADBEEF)
	f.SetAck(0x12345678)
	f.SetWindowSize(4096)
	f.SetUrgentPtr(0)
	f.SetOffsetAndFlags(5, FlagSYN|FlagACK)

	if got := f.SourcePort(); got != 1234 {
		t.Errorf("SourcePort = %d, want 1234", got)
	}
	if got := f.DestinationPort(); got != 80 {
		t.Errorf("DestinationPort = %d, want 80", got)
	}
	if got := f.Seq(); got != 0xDEADBEEF {
		t.Errorf("Seq = %#x, want 0xDEADBEEF", got)
	}
	if got := f.Ack(); got != 0x12345678 {
		t.Errorf("Ack = %#x, want 0x12345678", got)
	}
	if got := f.WindowSize(); got != 4096 {
		t.Errorf("WindowSize = %d, want 4096", got)
	}
	doff, flags := f.OffsetAndFlags()
	if doff != 5 || flags != (FlagSYN|FlagACK) {
		t.Errorf("OffsetAndFlags = (%d, %v), want (5, SYN|ACK)", doff, flags)
	}
	if got := f.HeaderLength(); got != SizeHeader {
		t.Errorf("HeaderLength = %d, want %d", got, SizeHeader)
	}
}

func TestFrameSegmentRoundTrip(t *testing.T) {
	buf := make([]byte, SizeHeader+5)
	f, _ := NewFrame(buf)
	seg := Segment{SEQ: 100, ACK: 200, WND: 1000, Flags: FlagACK | FlagPSH, DATALEN: 5}
	f.SetSegment(seg, SizeHeader/4)
	copy(f.RawData()[SizeHeader:], "hello")

	got := f.Segment(len(buf))
	if got.SEQ != seg.SEQ || got.ACK != seg.ACK || got.WND != seg.WND || got.Flags != seg.Flags {
		t.Errorf("Segment() = %+v, want %+v", got, seg)
	}
	if got.DATALEN != 5 {
		t.Errorf("DATALEN = %d, want 5", got.DATALEN)
	}
	if string(f.Payload(len(buf))) != "hello" {
		t.Errorf("Payload = %q, want %q", f.Payload(len(buf)), "hello")
	}
}

func TestMSSOptionRoundTrip(t *testing.T) {
	buf := make([]byte, SizeHeader+int(MaxMSSOptionLen))
	f, _ := NewFrame(buf)
	headerWords := f.SetMSSOption(1460)
	const want = uint8((SizeHeader + MaxMSSOptionLen) / 4)
	if headerWords != want {
		t.Fatalf("SetMSSOption returned headerWords=%d, want %d", headerWords, want)
	}
	f.SetOffsetAndFlags(headerWords, FlagSYN|FlagACK)

	mss, ok := ParseMSSOption(f.Options())
	if !ok || mss != 1460 {
		t.Fatalf("ParseMSSOption = (%d, %v), want (1460, true)", mss, ok)
	}
}

func TestParseMSSOptionSkipsUnknownOptions(t *testing.T) {
	// NOP, NOP, MSS(1460), end.
	opts := []byte{1, 1, 2, 4, 0x05, 0xB4, 0}
	mss, ok := ParseMSSOption(opts)
	if !ok || mss != 1460 {
		t.Fatalf("ParseMSSOption = (%d, %v), want (1460, true)", mss, ok)
	}
}

func TestParseMSSOptionAbsent(t *testing.T) {
	opts := []byte{1, 1, 0} // just NOPs and end
	if _, ok := ParseMSSOption(opts); ok {
		t.Fatal("ParseMSSOption should report ok=false when no MSS option is present")
	}
}
