package tcp

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ISSGenerator produces initial sequence numbers per RFC 6528: a
// 4µs timer component plus a keyed hash of the connection's
// four-tuple, so that ISS values for distinct connections neither collide
// nor let an off-path attacker predict one flow's ISS from another's
// (the fixed-ISS-at-0 simplification §9 flags as a reproducibility-only
// stand-in).
//
// A single generator is shared by a table of connections; its secret key
// is drawn once from crypto/rand at construction.
type ISSGenerator struct {
	mu  sync.Mutex
	key [32]byte
}

// NewISSGenerator draws a fresh random key for the keyed-hash (F) component
// of the RFC 6528 ISS function. Panics if the system entropy source fails, since a
// predictable key defeats the whole point of randomizing ISS.
func NewISSGenerator() *ISSGenerator {
	g := &ISSGenerator{}
	if _, err := rand.Read(g.key[:]); err != nil {
		panic("tcp: failed to seed ISS generator: " + err.Error())
	}
	return g
}

// ISS computes an initial sequence number for the connection identified by
// the given four-tuple, combining a 4µs-resolution clock (wraps roughly
// every 4.8 hours, matching the classic BSD ISS clock rate) with the first
// 32 bits of a keyed 8-byte BLAKE2b hash of the tuple so two connections active at the same
// instant still receive distinct, unguessable ISS values.
func (g *ISSGenerator) ISS(localIP, remoteIP [4]byte, localPort, remotePort uint16) Value {
	g.mu.Lock()
	key := g.key
	g.mu.Unlock()

	h, _ := blake2b.New(8, key[:]) // error only possible for size>64 or bad key len; both fixed here.
	h.Write(localIP[:])
	h.Write(remoteIP[:])
	var portBuf [4]byte
	binary.BigEndian.PutUint16(portBuf[0:2], localPort)
	binary.BigEndian.PutUint16(portBuf[2:4], remotePort)
	h.Write(portBuf[:])
	sum := h.Sum(nil)
	hashPart := binary.BigEndian.Uint32(sum)

	clock := uint32(time.Now().UnixMicro() / 4)
	return Value(clock + hashPart)
}
