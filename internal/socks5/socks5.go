package socks5

import (
	"errors"
	"io"
)

const (
	Version5 = 0x05

	MethodNoAuth       = 0x00
	MethodNoAcceptable = 0xFF

	CmdConnect      = 0x01
	CmdBind         = 0x02
	CmdUDPAssociate = 0x03

	ATYPIPv4   = 0x01
	ATYPDomain = 0x03
	ATYPIPv6   = 0x04

	RepSuccess             = 0x00
	RepGeneralFailure      = 0x01
	RepCommandNotSupported = 0x07

	// MaxDomainLen caps the domain-name form of a destination address.
	// RFC 1928 allows up to 255; this server has always enforced 128.
	MaxDomainLen = 128

	// maxMethodSelection is VER + NMETHODS + up to 255 methods.
	maxMethodSelection = 257
)

var (
	ErrShortGreeting   = errors.New("socks5: method selection too short")
	ErrVersion         = errors.New("socks5: unsupported protocol version")
	ErrNoMethods       = errors.New("socks5: empty method list")
	ErrBadAddressType  = errors.New("socks5: unsupported address type")
	ErrBadDomainLength = errors.New("socks5: domain length out of range")
)

// ReadMethodSelection consumes the client greeting:
//
//	| VER | NMETHODS | METHODS  |
//	|  1  |    1     | 1 to 255 |
//
// It performs a single read of at most 257 bytes and treats everything after
// the two-byte header as the advertised method set. Fewer than 3 bytes in
// that read, a version other than 5, or NMETHODS of 0 are protocol
// violations.
func ReadMethodSelection(r io.Reader) ([]byte, error) {
	buf := make([]byte, maxMethodSelection)
	n, err := r.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	if n < 3 {
		return nil, ErrShortGreeting
	}
	if buf[0] != Version5 {
		return nil, ErrVersion
	}
	if buf[1] == 0 {
		return nil, ErrNoMethods
	}
	return buf[2:n], nil
}

// HasMethod reports whether method m was advertised.
func HasMethod(methods []byte, m byte) bool {
	for _, v := range methods {
		if v == m {
			return true
		}
	}
	return false
}

// ReadRequestHeader consumes the fixed 4-byte request prefix:
//
//	| VER | CMD | RSV | ATYP |
//
// and returns CMD and ATYP. The destination address and port that follow are
// decoded separately by ReadAddr, so callers can reject unsupported commands
// before reading further.
func ReadRequestHeader(r io.Reader) (cmd, atyp byte, err error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, err
	}
	if hdr[0] != Version5 {
		return 0, 0, ErrVersion
	}
	return hdr[1], hdr[3], nil
}
