// Package socks5 implements the server-side SOCKS5 wire protocol used by
// ssproxy.
//
// It covers the method-selection handshake, the request header, destination
// address decoding (IPv4, IPv6, and domain-name forms), and the fixed reply
// sequences the server emits. Only the "no authentication" method is
// negotiable; BIND and UDP ASSOCIATE are recognized solely to reject them.
//
// The reply encoding deliberately preserves two quirks of the daemon this
// replaces: the CONNECT success reply always carries the placeholder bound
// address 0.0.0.0:4112 rather than the real local address, and the BIND
// rejection is a short 7-byte form. Clients in the wild tolerate both; see
// DESIGN.md before changing either.
package socks5
