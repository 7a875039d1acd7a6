// Package networkio wraps a UDP socket with bounded-timeout receives and
// an optional network-impairment layer used to exercise the reliability
// machinery under controlled loss and latency.
package networkio

import (
	"math"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rftp/rftp/internal/model"
)

// ErrReceiveTimeout is returned by [Endpoint.Receive] when no datagram
// arrived within the caller-supplied timeout. It is an expected,
// recoverable signal that drives retransmission.
var ErrReceiveTimeout = errors.New("networkio: receive timeout")

// Endpoint wraps an unconnected UDP socket. The same type serves both
// roles: the receiver binds a well-known port, the sender binds an
// ephemeral one and addresses its peer explicitly on each send.
//
// The zero value is invalid; use [Listen].
type Endpoint struct {
	// conn is the underlying socket.
	conn *net.UDPConn

	// imp applies the configured impairment, nil when none.
	imp *impairer

	// logger is the logger to use.
	logger model.Logger

	// closeOnce ensures we close just once.
	closeOnce sync.Once
}

// Listen binds a UDP socket on the given address ("host:port"; port 0
// picks an ephemeral one) and wraps it into an [Endpoint] applying the
// given impairment. Bind failures are fatal at startup and returned
// immediately, never retried.
func Listen(addr string, imp Impairment, logger model.Logger) (*Endpoint, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "networkio: cannot resolve address")
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrap(err, "networkio: cannot bind")
	}
	ep := &Endpoint{
		conn:   conn,
		logger: logger,
	}
	if imp.active() {
		ep.imp = newImpairer(imp)
	}
	return ep, nil
}

// LocalAddr returns the bound local address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Close closes the underlying socket with once semantics: the watchdog in
// the receiving path and a deferred cleanup may both call it. Pending and
// future receives fail.
func (e *Endpoint) Close() (err error) {
	e.closeOnce.Do(func() {
		err = e.conn.Close()
	})
	return
}

// Send transmits one datagram to the given destination, subject to the
// configured impairment: the datagram may be silently discarded or
// delayed before it is written to the socket. A dropped datagram is not
// an error, exactly like a loss in the real network.
func (e *Endpoint) Send(raw []byte, to *net.UDPAddr) error {
	if e.imp != nil {
		if e.imp.shouldDropOutbound() {
			e.logger.Debugf("networkio: impairment dropped %d bytes to %s", len(raw), to)
			return nil
		}
		if d := e.imp.delay(); d > 0 {
			time.Sleep(d)
		}
	}
	_, err := e.conn.WriteToUDP(raw, to)
	return err
}

// Receive waits for the next datagram, honoring the caller-supplied
// timeout: it returns [ErrReceiveTimeout] rather than hanging. Inbound
// datagrams are subject to the configured impairment too; a discarded
// datagram consumes part of the timeout, as a lost one would.
func (e *Endpoint) Receive(timeout time.Duration) ([]byte, *net.UDPAddr, error) {
	deadline := time.Now().Add(timeout)
	buffer := make([]byte, math.MaxUint16) // maximum UDP datagram size
	for {
		if err := e.conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, err
		}
		count, from, err := e.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, nil, ErrReceiveTimeout
			}
			return nil, nil, err
		}
		if e.imp != nil {
			if e.imp.shouldDropInbound() {
				e.logger.Debugf("networkio: impairment dropped %d bytes from %s", count, from)
				continue
			}
			if d := e.imp.delay(); d > 0 {
				time.Sleep(d)
			}
		}
		raw := make([]byte, count)
		copy(raw, buffer[:count])
		return raw, from, nil
	}
}
