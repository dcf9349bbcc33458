package proxy

import (
	"net"
	"time"

	"github.com/pprk-prjs/ssproxy/internal/dialer"
)

type Config struct {
	// NegotiationTimeout bounds protocol setup: the SOCKS5 handshake and
	// request, and HTTP header reads. Zero disables the deadline.
	NegotiationTimeout time.Duration

	// IdleTimeout bounds a tunnel's total lifetime once relaying starts.
	// Zero means tunnels live until either side closes.
	IdleTimeout time.Duration

	// HTTPIdleTimeout bounds idle keep-alive connections, both from
	// clients and in the outbound transport's pool.
	HTTPIdleTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	// Dialer establishes outbound connections for CONNECT tunnels and
	// relayed requests.
	Dialer dialer.Dialer

	// Verbose enables per-connection error logging.
	Verbose bool
}
