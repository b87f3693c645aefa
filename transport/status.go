package transport

import (
	"errors"
	"io"
	"net"
	"net/textproto"

	"github.com/pauliuspaskevicius/libARUtils/transfer"
)

// toStatus converts an error from the ftp library or the network into the
// *transfer.Status the engine expects.
func toStatus(err error, gate *transfer.Gate) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, transfer.ErrAbortTransfer) || errors.Is(err, errInterrupted) || gate.Signaled() {
		return &transfer.Status{Kind: transfer.StatusAborted, Err: err}
	}

	// Local sink and source failures are already typed.
	var tErr *transfer.Error
	if errors.As(err, &tErr) {
		return tErr
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return transfer.ReplyStatus(tpErr.Code, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &transfer.Status{Kind: transfer.StatusResolve, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &transfer.Status{Kind: transfer.StatusTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &transfer.Status{Kind: transfer.StatusConnect, Err: err}
	}

	return &transfer.Status{Kind: transfer.StatusUnknown, Err: err}
}

// loginStatus marks a failed USER/PASS exchange. The ftp library reports
// some rejections as plain errors without a reply code.
func loginStatus(err error, gate *transfer.Gate) error {
	st := toStatus(err, gate)
	var s *transfer.Status
	if errors.As(st, &s) && (s.Kind == transfer.StatusReply || s.Kind == transfer.StatusUnknown) {
		return &transfer.Status{Kind: transfer.StatusLogin, Reply: s.Reply, Err: err}
	}
	return st
}
