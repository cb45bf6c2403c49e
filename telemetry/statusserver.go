//go:build !tinygo

package telemetry

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/net/netutil"

	"github.com/grbl-go/stepcore/stepcore"
)

// StatusServer is a minimal plaintext debug endpoint: each accepted
// connection gets one status line and is closed, so a stray `nc host port`
// from the shop floor can check machine state without disturbing anything.
// netutil.LimitListener caps concurrent connections so a flood of debug
// clients can never starve the MQTT reporter or the main loop.
type StatusServer struct {
	listener net.Listener
	source   Source
	log      *slog.Logger
}

// NewStatusServer listens on addr (e.g. ":8990") and bounds concurrent
// connections to maxConns.
func NewStatusServer(addr string, maxConns int, source Source, log *slog.Logger) (*StatusServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	limited := netutil.LimitListener(ln, maxConns)
	return &StatusServer{listener: limited, source: source, log: log}, nil
}

// Serve accepts connections until the listener is closed.
func (s *StatusServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *StatusServer) handle(conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "rate=%.2f x=%d y=%d z=%d\n",
		s.source.RealtimeRate(),
		s.source.Position(stepcore.AxisX),
		s.source.Position(stepcore.AxisY),
		s.source.Position(stepcore.AxisZ),
	)
	if err := w.Flush(); err != nil {
		s.log.Debug("status client write failed", "error", err)
	}
}

// Close stops accepting new connections.
func (s *StatusServer) Close() error { return s.listener.Close() }
