// Command tcptun runs a small TUN-backed TCP echo server exercising the
// iface/tcp engine end to end: bind a port, accept connections, echo
// whatever is written back to the peer.
package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/soypat/utcp/iface"
)

func main() {
	var (
		name = flag.String("tun", "tun0", "TUN interface name")
		cidr = flag.String("cidr", "192.168.10.1/24", "address assigned to the TUN interface")
		port = flag.Uint("port", 7000, "local TCP port to listen on")
		lvl  = flag.String("level", "info", "log level: trace, debug, info, error")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*lvl),
	}))

	ifc, err := iface.Open(*name, *cidr, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer ifc.Close()

	ln, err := ifc.Bind(uint16(*port))
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("listening", slog.String("tun", ifc.Name()), slog.Uint64("port", uint64(*port)))

	for {
		stream, err := ln.Accept()
		if err != nil {
			logger.Error("accept", slog.String("err", err.Error()))
			return
		}
		go echo(logger, stream)
	}
}

func echo(logger *slog.Logger, s *iface.Stream) {
	defer s.Close()
	buf := make([]byte, 4096)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			if _, werr := s.Write(buf[:n]); werr != nil {
				logger.Error("write", slog.String("err", werr.Error()))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error("read", slog.String("err", err.Error()))
			}
			return
		}
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return slog.LevelDebug - 4
	case "debug":
		return slog.LevelDebug
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
