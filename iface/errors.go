package iface

import (
	"errors"
	"net"
)

// Errors surfaced to application callers (§7 Error handling design). Names
// mirror the conceptual error kinds the core distinguishes; packet-level
// parse/checksum errors never reach this far; they are logged and the
// frame is dropped (see dispatcher.go).
//
// ErrClosed reuses net.ErrClosed directly rather than minting a new
// sentinel, matching the teacher's own net.ErrClosed reuse in tcp/conn.go
// and tcp/listener.go; callers compare against it with errors.Is the same
// way the standard library's own net.Listener/net.Conn implementations do.
var (
	ErrAddrInUse    = errors.New("iface: address already in use")
	ErrConnAborted  = errors.New("iface: connection aborted")
	ErrWouldBlock   = errors.New("iface: would block")
	ErrNotConnected = errors.New("iface: not connected")
	ErrClosed       = net.ErrClosed
)
