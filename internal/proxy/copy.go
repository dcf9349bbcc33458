package proxy

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pprk-prjs/ssproxy/internal/metrics"
)

// CopyBidirectional relays bytes between left and right until either side
// closes or errors, then closes both exactly once. Termination of one
// direction tears down the other, so a peer close propagates instead of
// leaving a half-dead tunnel behind. Errors are not distinguished from a
// clean close; the return value exists for tests.
func CopyBidirectional(ctx context.Context, left, right net.Conn, idleTimeout time.Duration) error {
	if idleTimeout > 0 {
		dl := time.Now().Add(idleTimeout)
		_ = left.SetDeadline(dl)
		_ = right.SetDeadline(dl)
	}

	metrics.TunnelsOpen.Inc()
	defer metrics.TunnelsOpen.Dec()

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = left.Close()
			_ = right.Close()
		})
	}
	defer closeBoth()

	// If the context is canceled, close both sides to unblock the copies.
	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var g errgroup.Group

	g.Go(func() error {
		defer closeBoth()
		return copyOneWay(left, right)
	})

	g.Go(func() error {
		defer closeBoth()
		return copyOneWay(right, left)
	})

	return g.Wait()
}

func copyOneWay(dst io.Writer, src io.Reader) error {
	buf := getCopyBuf()
	defer putCopyBuf(buf)

	n, err := io.CopyBuffer(dst, src, *buf)
	metrics.TunnelBytesTotal.Add(float64(n))
	return err
}
