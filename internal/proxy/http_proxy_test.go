package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/pprk-prjs/ssproxy/internal/dialer"
	"github.com/pprk-prjs/ssproxy/internal/testutil"
)

func startHTTPProxy(t *testing.T, d dialer.Dialer) net.Listener {
	t.Helper()

	ln, err := ListenTCP(context.Background(), "tcp", "127.0.0.1:0", net.KeepAliveConfig{})
	if err != nil {
		t.Fatal(err)
	}

	srv := NewHTTPProxyServer(context.Background(), Config{
		NegotiationTimeout: 2 * time.Second,
		HTTPIdleTimeout:    time.Minute,
		Dialer:             d,
	})
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Close()
		_ = ln.Close()
	})

	return ln
}

func directTestDialer() dialer.Dialer {
	return dialer.NewDirectDialer(dialer.Config{DialTimeout: 2 * time.Second})
}

func TestHTTPProxyConnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	ln := startHTTPProxy(t, directTestDialer())

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))

	target := echoLn.Addr().String()
	if _, err := fmt.Fprintf(c, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", target, target); err != nil {
		t.Fatal(err)
	}

	br := bufio.NewReader(c)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.0 200 Connection established\r\n" {
		t.Fatalf("status line %q", line)
	}
	if blank, err := br.ReadString('\n'); err != nil || blank != "\r\n" {
		t.Fatalf("expected empty line, got %q err=%v", blank, err)
	}

	testutil.AssertEcho(t, c, br, []byte("hello"))
}

func TestHTTPProxyConnectFailure(t *testing.T) {
	t.Parallel()

	ln := startHTTPProxy(t, dialFunc(func(context.Context, string, string) (net.Conn, error) {
		return nil, errDialRefused
	}))

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))

	req := &http.Request{Method: http.MethodConnect, Host: "example.com:443", URL: &url.URL{Opaque: "example.com:443"}}
	if err := req.Write(c); err != nil {
		t.Fatal(err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(c), req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d want %d", resp.StatusCode, http.StatusBadGateway)
	}
}

func TestHTTPProxyRelayMirrorsResponse(t *testing.T) {
	t.Parallel()

	const body = "upstream says hi"

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Proxy-Connection") != "" {
			t.Error("Proxy-Connection header reached the origin")
		}
		w.Header().Set("X-Upstream", "yes")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		_, _ = io.WriteString(w, body)
	}))
	defer origin.Close()

	ln := startHTTPProxy(t, directTestDialer())

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))

	// Proxy-form request line with an absolute URI, as a proxy client
	// would send it.
	if _, err := fmt.Fprintf(c, "GET %s/ HTTP/1.1\r\nHost: %s\r\nProxy-Connection: keep-alive\r\n\r\n", origin.URL, origin.Listener.Addr()); err != nil {
		t.Fatal(err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(c), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Upstream"); got != "yes" {
		t.Fatalf("X-Upstream=%q", got)
	}
	if got := resp.Header.Values("Set-Cookie"); len(got) != 2 {
		t.Fatalf("Set-Cookie values %v, want 2", got)
	}
	if got := resp.Header.Get("Content-Length"); got != strconv.Itoa(len(body)) {
		t.Fatalf("Content-Length=%q want %d", got, len(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != body {
		t.Fatalf("body %q want %q", string(data), body)
	}
}

func TestHTTPProxyRelayDoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer origin.Close()

	ln := startHTTPProxy(t, directTestDialer())

	proxyURL, err := url.Parse("http://" + ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(origin.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status %d want %d (proxy must mirror, not follow)", resp.StatusCode, http.StatusFound)
	}
	if got := resp.Header.Get("Location"); got != "/elsewhere" {
		t.Fatalf("Location=%q", got)
	}
}

func TestHTTPProxyRelayUpstreamUnreachable(t *testing.T) {
	t.Parallel()

	ln := startHTTPProxy(t, dialFunc(func(context.Context, string, string) (net.Conn, error) {
		return nil, errDialRefused
	}))

	proxyURL, err := url.Parse("http://" + ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}

	resp, err := client.Get("http://unreachable.invalid/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d want 500", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) == 0 {
		t.Fatal("expected error text in body")
	}
}
