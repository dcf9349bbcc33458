package socks5

import "io"

// The reply sequences below are fixed byte strings rather than assembled
// replies. The success and UDP ASSOCIATE replies carry a placeholder bound
// address of 0.0.0.0 with port 0x1010, and the BIND rejection is a truncated
// 7-byte form; both are kept byte-for-byte for compatibility with the
// previous daemon's clients.
var (
	methodReplyNoAuth       = []byte{Version5, MethodNoAuth}
	methodReplyNoAcceptable = []byte{Version5, MethodNoAcceptable}

	replySuccess        = []byte{Version5, RepSuccess, 0x00, ATYPIPv4, 0x00, 0x00, 0x00, 0x00, 0x10, 0x10}
	replyGeneralFailure = []byte{Version5, RepGeneralFailure, 0x00, ATYPIPv4, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	replyRejectUDP      = []byte{Version5, RepCommandNotSupported, 0x00, ATYPIPv4, 0x00, 0x00, 0x00, 0x00, 0x10, 0x10}
	replyRejectBind     = []byte{Version5, RepCommandNotSupported, 0x00, ATYPDomain, 0x00, 0xFF, 0xFF}
)

// WriteMethodAccept tells the client the "no authentication" method was
// selected.
func WriteMethodAccept(w io.Writer) error {
	_, err := w.Write(methodReplyNoAuth)
	return err
}

// WriteMethodReject tells the client none of its methods are acceptable.
func WriteMethodReject(w io.Writer) error {
	_, err := w.Write(methodReplyNoAcceptable)
	return err
}

// WriteSuccess acknowledges a CONNECT request.
func WriteSuccess(w io.Writer) error {
	_, err := w.Write(replySuccess)
	return err
}

// WriteGeneralFailure reports that the destination connect failed.
func WriteGeneralFailure(w io.Writer) error {
	_, err := w.Write(replyGeneralFailure)
	return err
}

// WriteUDPAssociateReject rejects a UDP ASSOCIATE command.
func WriteUDPAssociateReject(w io.Writer) error {
	_, err := w.Write(replyRejectUDP)
	return err
}

// WriteBindReject rejects a BIND command.
func WriteBindReject(w io.Writer) error {
	_, err := w.Write(replyRejectBind)
	return err
}
