// Package dialer provides the outbound dialing implementations used by the
// proxy listeners.
//
// Dialers implement a small interface (DialContext) and establish outbound
// connections either directly or via an upstream proxy (HTTP CONNECT or
// SOCKS5). The direct dialer can optionally resolve names through an
// explicitly configured DNS server instead of the system resolver.
package dialer
