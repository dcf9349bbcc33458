// Package metrics holds the prometheus instruments exported on the debug
// listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal counts accepted proxy connections by listener
	// protocol ("http" or "socks5").
	ConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ssproxy",
		Name:      "connections_total",
		Help:      "Accepted proxy connections by protocol.",
	}, []string{"proto"})

	// DialErrorsTotal counts failed outbound connects by listener protocol.
	DialErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ssproxy",
		Name:      "dial_errors_total",
		Help:      "Failed outbound connection attempts by protocol.",
	}, []string{"proto"})

	// TunnelsOpen tracks tunnels currently relaying.
	TunnelsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ssproxy",
		Name:      "tunnels_open",
		Help:      "Tunnels currently relaying bytes.",
	})

	// TunnelBytesTotal counts bytes relayed through tunnels, both
	// directions combined.
	TunnelBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ssproxy",
		Name:      "tunnel_bytes_total",
		Help:      "Bytes relayed through tunnels.",
	})
)

// Handler returns the /metrics endpoint for the debug listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
