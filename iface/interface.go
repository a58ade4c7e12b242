package iface

import (
	"log/slog"
	"sync"
	"time"

	"github.com/soypat/utcp/internal/tun"
)

// tickInterval is the on_tick cadence (§5 "Tick thread ... periodically
// acquires the lock and drives on_tick", citing "e.g. every 10 ms").
const tickInterval = 10 * time.Millisecond

// Interface owns a TUN device and the Table it drives: the I/O worker that
// loops in blocking receive and the tick goroutine that advances every
// connection's timers, both described in §5 as two logical threads sharing
// one table lock (here folded into two goroutines rather than one thread
// with a receive timeout, since Go gives blocking-read-plus-channel a
// cheaper shutdown path than a syscall timeout would).
type Interface struct {
	dev   *tun.Device
	Table *Table

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open creates or attaches to the named TUN device, assigns it cidr (e.g.
// "192.168.10.1/24") if non-empty, and starts the I/O and tick workers.
func Open(name, cidr string, log *slog.Logger) (*Interface, error) {
	dev, err := tun.Open(name, cidr)
	if err != nil {
		return nil, err
	}
	table := NewTable()
	if log != nil {
		table.SetLogger(log)
	}
	ifc := &Interface{
		dev:   dev,
		Table: table,
		done:  make(chan struct{}),
	}
	ifc.wg.Add(2)
	go ifc.readLoop()
	go ifc.tickLoop()
	return ifc, nil
}

// Bind reserves a local port for accepting inbound connections; see
// Table.Bind.
func (ifc *Interface) Bind(port uint16) (*Listener, error) {
	return ifc.Table.Bind(port)
}

// Name returns the underlying TUN interface's name, e.g. "tun0".
func (ifc *Interface) Name() string { return ifc.dev.Name() }

// Send implements Sender by writing one IPv4 datagram to the TUN device,
// outside of Table's lock (§5 "Reads/writes the TUN without holding the
// table lock around the syscall when possible"). Exported so callers can
// also use it directly, e.g. Listener.Close's RST emission.
func (ifc *Interface) Send(packet []byte) error {
	_, err := ifc.dev.Write(packet)
	return err
}

// readLoop is the I/O worker (§5 item 1): it blocks in dev.Read, then hands
// each frame to the dispatcher. Closing the Interface closes dev, which
// unblocks the pending Read with an error; done is checked first so that
// expected shutdown error is not logged as a fault.
func (ifc *Interface) readLoop() {
	defer ifc.wg.Done()
	buf := make([]byte, MaxFrameSize)
	for {
		n, err := ifc.dev.Read(buf)
		if err != nil {
			select {
			case <-ifc.done:
				return
			default:
			}
			ifc.Table.Error("iface:read", slog.String("err", err.Error()))
			return
		}
		if n == 0 {
			continue
		}
		frame := append([]byte(nil), buf[:n]...)
		ifc.Table.Dispatch(frame, time.Now(), ifc.Send)
	}
}

// tickLoop is the tick thread (§5 item 2), folded into its own goroutine:
// every tickInterval it drives every connection's on_tick step.
func (ifc *Interface) tickLoop() {
	defer ifc.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ifc.done:
			return
		case now := <-ticker.C:
			ifc.Table.Tick(now, ifc.Send)
		}
	}
}

// Close sets the terminated flag, closes the TUN device to unblock the I/O
// worker's pending Read, and joins both workers before returning (§5
// "Interface drop sets a terminated flag and joins the I/O worker").
func (ifc *Interface) Close() error {
	ifc.closeOnce.Do(func() { close(ifc.done) })
	err := ifc.dev.Close()
	ifc.wg.Wait()
	return err
}
