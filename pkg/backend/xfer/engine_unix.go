//go:build unix

package xfer

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const engineSupported = true

// aLongTimeAgo is an already-expired deadline, used to turn a tls.Conn read
// into a single non-blocking attempt.
var aLongTimeAgo = time.Unix(1, 0)

func newEngine(cfg Config) (Engine, error) {
	return &netEngine{cfg: cfg}, nil
}

// netEngine is the built-in transfer engine: a TCP dial plus, for https
// URLs, a TLS client handshake.  Verification runs manually inside the
// handshake so that a rejected peer certificate is recorded without tearing
// down the transport connection.
type netEngine struct {
	cfg     Config
	conn    net.Conn
	raw     syscall.RawConn
	sock    int
	badCert bool
}

func (e *netEngine) Perform() error {
	if e.conn != nil {
		return errors.New("session already connected")
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	tcp, err := net.Dial("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "dial")
	}

	if e.raw, err = tcp.(*net.TCPConn).SyscallConn(); err != nil {
		tcp.Close()
		return errors.Wrap(err, "raw conn")
	}
	if err = e.raw.Control(func(fd uintptr) { e.sock = int(fd) }); err != nil {
		tcp.Close()
		return errors.Wrap(err, "socket")
	}

	if !strings.HasPrefix(e.cfg.URL, "https://") {
		e.conn = tcp
		return nil
	}

	conf := &tls.Config{ServerName: e.cfg.Host}
	if e.cfg.VerifyPeer {
		// Verification failure must leave the connection standing, so
		// verify by hand and only record the outcome.
		conf.InsecureSkipVerify = true
		conf.VerifyConnection = e.verify
	}

	tc := tls.Client(tcp, conf)
	if err = tc.Handshake(); err != nil {
		tcp.Close()
		return errors.Wrap(err, "tls handshake")
	}
	e.conn = tc

	if e.badCert {
		return ErrVerifyPeer
	}
	return nil
}

func (e *netEngine) verify(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		e.badCert = true
		return nil
	}

	opts := x509.VerifyOptions{
		DNSName:       cs.ServerName,
		Intermediates: x509.NewCertPool(),
	}
	for _, c := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(c)
	}

	if _, err := cs.PeerCertificates[0].Verify(opts); err != nil {
		e.badCert = true
	}
	return nil
}

func (e *netEngine) Socket() (int, error) {
	if e.conn == nil {
		return 0, errors.New("no connected session")
	}
	return e.sock, nil
}

func (e *netEngine) Send(p []byte) (int, error) {
	if e.conn == nil {
		return 0, errors.New("no connected session")
	}

	// Record-layer writes cannot be resumed mid-record, so encrypted
	// sends go through the tls.Conn; the caller has already waited for
	// writability.
	if tc, ok := e.conn.(*tls.Conn); ok {
		return tc.Write(p)
	}

	var (
		n    int
		serr error
	)
	if err := e.raw.Control(func(fd uintptr) {
		n, serr = unix.Write(int(fd), p)
	}); err != nil {
		return 0, errors.Wrap(err, "send")
	}

	switch {
	case serr == unix.EAGAIN || serr == unix.EWOULDBLOCK:
		return 0, ErrAgain
	case serr != nil:
		return 0, errors.Wrap(serr, "send")
	}
	return n, nil
}

func (e *netEngine) Recv(p []byte) (int, error) {
	if e.conn == nil {
		return 0, errors.New("no connected session")
	}
	if len(p) == 0 {
		return 0, nil
	}

	if tc, ok := e.conn.(*tls.Conn); ok {
		return e.recvTLS(tc, p)
	}

	var (
		n    int
		serr error
	)
	if err := e.raw.Control(func(fd uintptr) {
		n, serr = unix.Read(int(fd), p)
	}); err != nil {
		return 0, errors.Wrap(err, "recv")
	}

	switch {
	case serr == unix.EAGAIN || serr == unix.EWOULDBLOCK:
		return 0, ErrAgain
	case serr != nil:
		return 0, errors.Wrap(serr, "recv")
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// recvTLS reads with an expired deadline: data already decrypted and
// buffered by the record layer is returned regardless, while an empty
// buffer makes the underlying read fail immediately with a timeout.
func (e *netEngine) recvTLS(tc *tls.Conn, p []byte) (int, error) {
	if err := tc.SetReadDeadline(aLongTimeAgo); err != nil {
		return 0, errors.Wrap(err, "recv")
	}
	n, err := tc.Read(p)
	_ = tc.SetReadDeadline(time.Time{})

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		if n > 0 {
			return n, nil
		}
		return 0, ErrAgain
	case errors.Is(err, io.EOF):
		return n, io.EOF
	}
	return 0, errors.Wrap(err, "recv")
}

func (e *netEngine) Close() error {
	if e.conn == nil {
		return nil
	}

	err := e.conn.Close()
	e.conn = nil
	e.raw = nil
	e.sock = 0
	return err
}

// defaultWaiter blocks with no timeout until fd is ready for the requested
// direction.  Error conditions on the socket wake the poll via revents.
func defaultWaiter(fd int, wantRead bool) error {
	ev := int16(unix.POLLOUT)
	if wantRead {
		ev = unix.POLLIN
	}

	pfd := []unix.PollFd{{Fd: int32(fd), Events: ev}}
	for {
		if _, err := unix.Poll(pfd, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.Wrap(err, "poll")
		}
		return nil
	}
}
