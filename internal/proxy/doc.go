// Package proxy implements the listener-side servers of ssproxy.
//
// It contains the HTTP forward proxy (CONNECT tunneling plus plain-request
// relay), the SOCKS5 server, and shared connection plumbing such as the
// keepalive listener and the bidirectional tunnel relay both servers hand
// established connections to.
package proxy
