package iface

import (
	"errors"
	"testing"
	"time"

	"github.com/soypat/utcp/internal/headers"
	"github.com/soypat/utcp/tcp"
)

func testQuad() tcp.Quad {
	return tcp.Quad{
		RemoteAddr: [4]byte{10, 0, 0, 2},
		LocalAddr:  [4]byte{10, 0, 0, 1},
		RemotePort: 5555,
		LocalPort:  80,
	}
}

// peerView swaps quad's local/remote perspective, so encodeReply (which
// always addresses a packet from its argument's Local side to its Remote
// side) can be reused to build frames arriving *from* the peer.
func peerView(q tcp.Quad) tcp.Quad {
	return tcp.Quad{RemoteAddr: q.LocalAddr, LocalAddr: q.RemoteAddr, RemotePort: q.LocalPort, LocalPort: q.RemotePort}
}

type packetSink struct{ packets [][]byte }

func (s *packetSink) send(pkt []byte) error {
	s.packets = append(s.packets, append([]byte(nil), pkt...))
	return nil
}

func serverISS(t *testing.T, pkt []byte) tcp.Value {
	t.Helper()
	frame, err := tcp.NewFrame(pkt[headers.SizeIPv4:])
	if err != nil {
		t.Fatalf("parsing reply packet: %v", err)
	}
	return frame.Seq()
}

func TestDispatchHandshakeAndEcho(t *testing.T) {
	table := NewTable()
	ln, err := table.Bind(80)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	quad := testQuad()
	remote := peerView(quad)
	sink := &packetSink{}
	now := time.Now()

	synFrame := encodeReply(remote, tcp.Segment{SEQ: 1000, WND: 4096, Flags: tcp.FlagSYN}, nil)
	table.Dispatch(synFrame, now, sink.send)
	if len(sink.packets) != 1 {
		t.Fatalf("after SYN: got %d replies, want 1", len(sink.packets))
	}
	iss := serverISS(t, sink.packets[0])

	ackFrame := encodeReply(remote, tcp.Segment{SEQ: 1001, ACK: iss + 1, WND: 4096, Flags: tcp.FlagACK}, nil)
	table.Dispatch(ackFrame, now, sink.send)

	stream, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if stream.State() != tcp.StateEstablished {
		t.Fatalf("state after handshake = %v, want ESTABLISHED", stream.State())
	}

	dataFrame := encodeReply(remote, tcp.Segment{SEQ: 1001, ACK: iss + 1, WND: 4096, Flags: tcp.FlagPSH | tcp.FlagACK, DATALEN: 5}, []byte("hello"))
	table.Dispatch(dataFrame, now, sink.send)

	buf := make([]byte, 16)
	n, err := stream.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Read = %q, want %q", buf[:n], "hello")
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	before := len(sink.packets)
	table.Tick(now, sink.send)
	if len(sink.packets) != before+1 {
		t.Fatalf("Tick after Close should emit one FIN segment, got %d new packets", len(sink.packets)-before)
	}
	finPkt := sink.packets[len(sink.packets)-1]
	finFrame, _ := tcp.NewFrame(finPkt[headers.SizeIPv4:])
	_, flags := finFrame.OffsetAndFlags()
	if !flags.HasAny(tcp.FlagFIN) {
		t.Fatalf("expected the tick's reply to carry FIN, flags = %v", flags)
	}
}

func TestBindConflict(t *testing.T) {
	table := NewTable()
	if _, err := table.Bind(6000); err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	if _, err := table.Bind(6000); err != ErrAddrInUse {
		t.Fatalf("second Bind on same port: err = %v, want ErrAddrInUse", err)
	}
}

func TestListenerCloseAbortsBacklog(t *testing.T) {
	table := NewTable()
	ln, err := table.Bind(80)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	quad := testQuad()
	remote := peerView(quad)
	sink := &packetSink{}
	now := time.Now()

	synFrame := encodeReply(remote, tcp.Segment{SEQ: 1000, WND: 4096, Flags: tcp.FlagSYN}, nil)
	table.Dispatch(synFrame, now, sink.send)
	iss := serverISS(t, sink.packets[0])
	ackFrame := encodeReply(remote, tcp.Segment{SEQ: 1001, ACK: iss + 1, WND: 4096, Flags: tcp.FlagACK}, nil)
	table.Dispatch(ackFrame, now, sink.send)

	before := len(sink.packets)
	if err := ln.Close(sink.send); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(sink.packets) != before+1 {
		t.Fatalf("Listener.Close should RST the queued backlog entry, got %d new packets", len(sink.packets)-before)
	}
	rstFrame, _ := tcp.NewFrame(sink.packets[len(sink.packets)-1][headers.SizeIPv4:])
	_, flags := rstFrame.OffsetAndFlags()
	if !flags.HasAny(tcp.FlagRST) {
		t.Fatalf("expected RST, flags = %v", flags)
	}
	if _, err := ln.Accept(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Accept on closed listener: err = %v, want ErrClosed", err)
	}
}
