package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/pprk-prjs/ssproxy/internal/dialer"
	"github.com/pprk-prjs/ssproxy/internal/metrics"
)

// connectEstablished is the exact CONNECT success line; some clients match it
// byte for byte, so it stays HTTP/1.0 with this capitalization.
const connectEstablished = "HTTP/1.0 200 Connection established\r\n\r\n"

// strippedResponseHeaders are not mirrored from upstream responses: they
// describe the upstream wire encoding, which is meaningless once the response
// is re-sent, and Content-Length is recomputed from the buffered body.
var strippedResponseHeaders = map[string]bool{
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Content-Encoding":  true,
	"Connection":        true,
}

// HTTPProxyServer serves an HTTP forward proxy.
//
// CONNECT requests are tunneled by hijacking the client connection, dialing
// the target, and handing both streams to CopyBidirectional. All other
// methods are relayed through an outbound HTTP client with redirects
// disabled and the upstream status mirrored back.
type HTTPProxyServer struct {
	ctx    context.Context
	cfg    Config
	srv    *http.Server
	client *http.Client
}

// NewHTTPProxyServer constructs an HTTP proxy server with the given config.
//
// Serve starts accepting connections on a listener; Close stops the
// underlying http.Server.
func NewHTTPProxyServer(ctx context.Context, cfg Config) *HTTPProxyServer {
	if ctx == nil {
		ctx = context.Background()
	}
	h := &HTTPProxyServer{
		ctx: ctx,
		cfg: cfg,
		client: &http.Client{
			Transport: newTransport(cfg),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	h.srv = &http.Server{
		Handler:           http.HandlerFunc(h.handle),
		ReadHeaderTimeout: cfg.NegotiationTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return h.ctx
		},
	}
	return h
}

// Serve serves HTTP proxy requests on ln.
func (s *HTTPProxyServer) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Close stops the HTTP server.
func (s *HTTPProxyServer) Close() error {
	return s.srv.Close()
}

func (s *HTTPProxyServer) handle(w http.ResponseWriter, r *http.Request) {
	metrics.ConnectionsTotal.WithLabelValues("http").Inc()

	if strings.EqualFold(r.Method, http.MethodConnect) {
		s.handleConnect(w, r)
		return
	}
	s.handleSimple(w, r)
}

func (s *HTTPProxyServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, brw, err := hj.Hijack()
	if err != nil {
		http.Error(w, "hijack failed", http.StatusInternalServerError)
		return
	}
	_ = brw.Flush()
	defer clientConn.Close()

	target := r.Host
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, "443")
	}

	serverConn, err := s.cfg.Dialer.DialContext(r.Context(), "tcp", target)
	if err != nil {
		metrics.DialErrorsTotal.WithLabelValues("http").Inc()
		_, _ = writeHijackedError(brw, err, http.StatusBadGateway)
		_ = brw.Flush()
		return
	}

	_, _ = brw.WriteString(connectEstablished)
	_ = brw.Flush()

	_ = CopyBidirectional(s.ctx, clientConn, serverConn, s.cfg.IdleTimeout)
}

func (s *HTTPProxyServer) handleSimple(w http.ResponseWriter, r *http.Request) {
	out := r.Clone(r.Context())
	out.RequestURI = ""
	out.Header.Del("Proxy-Connection")

	// Allow a scheme override through a non-standard header; otherwise a
	// forward-proxy request without a scheme is plain HTTP.
	if scheme := out.Header.Get("X-Proxy-Scheme"); scheme != "" {
		out.Header.Del("X-Proxy-Scheme")
		out.URL.Scheme = scheme
	} else if out.URL.Scheme == "" {
		out.URL.Scheme = "http"
	}
	if out.URL.Host == "" {
		out.URL.Host = r.Host
	}
	out.Host = out.URL.Host

	resp, err := s.client.Do(out)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	// Mirror the upstream response: status as-is (including non-2xx and
	// unfollowed redirects), headers minus the wire-encoding set, and an
	// explicit Content-Length for the buffered body. Multi-valued headers
	// such as Set-Cookie are carried through.
	for name, values := range resp.Header {
		if strippedResponseHeaders[name] {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if len(body) > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

func writeInternalError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprintf(w, "Internal server error:\n%v", err)
}

// writeHijackedError simulates http.Error for use on a hijacked connection.
func writeHijackedError(brw *bufio.ReadWriter, err error, code int) (int, error) {
	return fmt.Fprintf(brw, "HTTP/1.0 %d %s\r\nContent-Type: text/plain; charset=utf-8\r\nConnection: close\r\n\r\n%s\r\n", code, http.StatusText(code), err.Error())
}

func newTransport(cfg Config) http.RoundTripper {
	t := &http.Transport{
		DialContext:         cfg.Dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        2048,
		MaxIdleConnsPerHost: 1024,
		IdleConnTimeout:     cfg.HTTPIdleTimeout,
		TLSHandshakeTimeout: cfg.NegotiationTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ClientSessionCache: tls.NewLRUClientSessionCache(0),
		},
	}

	// When the upstream is itself an HTTP proxy, prefer the standard
	// library's proxy support for relayed requests; DialContext is then
	// used to reach the proxy itself.
	if up, ok := cfg.Dialer.(*dialer.HTTPProxyDialer); ok {
		t.Proxy = http.ProxyURL(up.ProxyURL())
		t.DialContext = up.Direct().DialContext
	}

	return t
}
