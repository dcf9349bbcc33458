package dialer

import (
	"context"
	"fmt"
	"net"
)

type directDialer struct {
	cfg      Config
	resolver *resolver
}

// NewDirectDialer dials destinations directly, resolving domain names via
// cfg.DNSServer when one is configured.
func NewDirectDialer(cfg Config) Dialer {
	d := &directDialer{cfg: cfg}
	if cfg.DNSServer != "" {
		d.resolver = newResolver(cfg.DNSServer)
	}
	return d
}

func (f *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if f.resolver != nil {
		resolved, err := f.resolveAddress(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
		}
		address = resolved
	}

	dd := net.Dialer{Timeout: f.cfg.DialTimeout}

	conn, err := dd.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(f.cfg.KeepAlive)
	}

	return conn, nil
}

func (f *directDialer) resolveAddress(ctx context.Context, address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil || net.ParseIP(host) != nil {
		return address, nil
	}

	ip, err := f.resolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip, port), nil
}
