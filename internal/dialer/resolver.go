package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/patrickmn/go-cache"
)

// resolver answers lookups against one explicitly configured DNS server,
// caching answers for their advertised TTL.
type resolver struct {
	server string
	client *dns.Client
	cache  *cache.Cache
}

func newResolver(server string) *resolver {
	return &resolver{
		server: server,
		client: new(dns.Client),
		cache:  cache.New(time.Minute, 5*time.Minute),
	}
}

// LookupHost resolves host to a single IP address, preferring A over AAAA
// records.
func (r *resolver) LookupHost(ctx context.Context, host string) (string, error) {
	if v, ok := r.cache.Get(host); ok {
		return v.(string), nil
	}

	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		m.RecursionDesired = true

		in, _, err := r.client.ExchangeContext(ctx, m, r.server)
		if err != nil {
			lastErr = err
			continue
		}

		if ip, ttl := answerIP(in); ip != nil {
			r.cache.Set(host, ip.String(), ttl)
			return ip.String(), nil
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("resolve %s via %s: %w", host, r.server, lastErr)
	}
	return "", fmt.Errorf("resolve %s via %s: no address records", host, r.server)
}

// answerIP extracts the first address record from a response, along with its
// TTL for caching.
func answerIP(msg *dns.Msg) (net.IP, time.Duration) {
	for _, ans := range msg.Answer {
		switch rr := ans.(type) {
		case *dns.A:
			return rr.A, time.Duration(rr.Hdr.Ttl) * time.Second
		case *dns.AAAA:
			return rr.AAAA, time.Duration(rr.Hdr.Ttl) * time.Second
		}
	}
	return nil, 0
}
