package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds DNS lookup plus TCP connect for a single dial.
	DialTimeout time.Duration

	// NegotiationTimeout bounds upstream-proxy handshakes (TLS, CONNECT).
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	// DNSServer is an optional host:port to resolve names against
	// directly. Empty uses the system resolver.
	DNSServer string
}
