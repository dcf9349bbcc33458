package proxy

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/pprk-prjs/ssproxy/internal/metrics"
	"github.com/pprk-prjs/ssproxy/internal/socks5"
)

// SOCKS5Server accepts SOCKS5 connections, negotiates the no-auth method,
// parses the CONNECT request, dials the destination through the configured
// dialer, and hands both streams to CopyBidirectional.
type SOCKS5Server struct {
	ctx context.Context
	cfg Config
}

func NewSOCKS5Server(ctx context.Context, cfg Config) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg}
}

// Serve accepts connections on ln until it is closed. Each connection is
// handled by its own goroutine; per-connection failures never escape the
// accept loop.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(c)
	}
}

func (s *SOCKS5Server) handleConn(conn net.Conn) {
	defer conn.Close()

	metrics.ConnectionsTotal.WithLabelValues("socks5").Inc()

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	methods, err := socks5.ReadMethodSelection(conn)
	if err != nil {
		s.logf("%s: method selection: %v", conn.RemoteAddr(), err)
		return
	}
	if !socks5.HasMethod(methods, socks5.MethodNoAuth) {
		s.logf("%s: no acceptable authentication method", conn.RemoteAddr())
		_ = socks5.WriteMethodReject(conn)
		return
	}
	if err := socks5.WriteMethodAccept(conn); err != nil {
		return
	}

	cmd, atyp, err := socks5.ReadRequestHeader(conn)
	if err != nil {
		s.logf("%s: request: %v", conn.RemoteAddr(), err)
		return
	}

	// Unsupported commands are rejected before the address is read, so the
	// reply goes out even when the rest of the request is malformed.
	switch cmd {
	case socks5.CmdConnect:
	case socks5.CmdUDPAssociate:
		_ = socks5.WriteUDPAssociateReject(conn)
		return
	case socks5.CmdBind:
		_ = socks5.WriteBindReject(conn)
		return
	default:
		s.logf("%s: unsupported command %#x", conn.RemoteAddr(), cmd)
		return
	}

	addr, port, err := socks5.ReadAddr(conn, atyp)
	if err != nil {
		s.logf("%s: destination address: %v", conn.RemoteAddr(), err)
		return
	}

	dst := addr.HostPort(port)
	up, err := s.cfg.Dialer.DialContext(s.ctx, "tcp", dst)
	if err != nil {
		metrics.DialErrorsTotal.WithLabelValues("socks5").Inc()
		s.logf("%s: connect %s: %v", conn.RemoteAddr(), dst, err)
		_ = socks5.WriteGeneralFailure(conn)
		return
	}
	defer up.Close()

	if err := socks5.WriteSuccess(conn); err != nil {
		return
	}
	_ = conn.SetDeadline(time.Time{})

	_ = CopyBidirectional(s.ctx, conn, up, s.cfg.IdleTimeout)
}

func (s *SOCKS5Server) logf(format string, args ...any) {
	if s.cfg.Verbose {
		log.Printf("socks5: "+format, args...)
	}
}
