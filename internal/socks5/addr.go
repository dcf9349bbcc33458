package socks5

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
)

// AddrKind distinguishes the three destination address encodings.
type AddrKind int

const (
	AddrIPv4 AddrKind = iota
	AddrIPv6
	AddrDomain
)

// Addr is a decoded SOCKS5 destination address. Exactly one of IP or Domain
// is set, selected by Kind. Domain names are carried verbatim; resolution
// happens at dial time.
type Addr struct {
	Kind   AddrKind
	IP     net.IP
	Domain string
}

// String renders the address as a dotted quad, colon-hex IPv6 address, or
// bare domain name.
func (a Addr) String() string {
	if a.Kind == AddrDomain {
		return a.Domain
	}
	return a.IP.String()
}

// HostPort joins the address with port in the form net.Dial expects.
func (a Addr) HostPort(port uint16) string {
	return net.JoinHostPort(a.String(), strconv.Itoa(int(port)))
}

// ReadAddr decodes the variable-length DST.ADDR and the 2-byte big-endian
// DST.PORT that follow a request header with the given ATYP:
//
//	IPv4:   4 address bytes
//	IPv6:   16 address bytes
//	Domain: 1 length byte L in [1,128], then L name bytes
//
// Any other ATYP value, or a domain length outside [1,128], is rejected.
func ReadAddr(r io.Reader, atyp byte) (Addr, uint16, error) {
	switch atyp {
	case ATYPIPv4:
		var buf [6]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Addr{}, 0, err
		}
		ip := make(net.IP, 4)
		copy(ip, buf[:4])
		return Addr{Kind: AddrIPv4, IP: ip}, binary.BigEndian.Uint16(buf[4:]), nil

	case ATYPIPv6:
		var buf [18]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Addr{}, 0, err
		}
		ip := make(net.IP, 16)
		copy(ip, buf[:16])
		return Addr{Kind: AddrIPv6, IP: ip}, binary.BigEndian.Uint16(buf[16:]), nil

	case ATYPDomain:
		var lb [1]byte
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			return Addr{}, 0, err
		}
		l := int(lb[0])
		if l == 0 || l > MaxDomainLen {
			return Addr{}, 0, ErrBadDomainLength
		}
		buf := make([]byte, l+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Addr{}, 0, err
		}
		return Addr{Kind: AddrDomain, Domain: string(buf[:l])}, binary.BigEndian.Uint16(buf[l:]), nil

	default:
		return Addr{}, 0, ErrBadAddressType
	}
}
