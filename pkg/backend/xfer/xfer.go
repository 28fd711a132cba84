// Package xfer implements the transfer-engine backend of the stream
// capability set.  It composes blocking read/write semantics out of the
// engine's non-blocking primitives by polling socket readiness between
// attempts.
package xfer

import (
	"io"
	"strconv"

	log "github.com/lthibault/log/pkg"
	"github.com/pkg/errors"

	stream "github.com/gitwire/streams/pkg"
)

// Stream is an engine-backed stream.  It owns one Engine session and the
// socket descriptor the session yields after connecting.
type Stream struct {
	encrypted bool
	eng       Engine
	sock      int
	wait      Waiter
	log       log.Logger
}

var _ stream.Stream = (*Stream)(nil)

// New configures a stream for host:port.  No connection is attempted until
// Connect.  On builds without the default transfer engine, New fails with
// stream.ErrNotSupported unless an engine is injected via OptEngine.
func New(host, port string, encrypted bool, opt ...Option) (*Stream, error) {
	s := &Stream{encrypted: encrypted}
	for _, fn := range opt {
		fn(s)
	}

	if s.eng == nil && !engineSupported {
		return nil, stream.ErrNotSupported
	}

	iport, err := strconv.Atoi(port)
	if err != nil {
		return nil, errors.Wrapf(err, "parse port %q", port)
	}

	if s.log == nil {
		s.log = log.New(log.OptLevel(log.NullLevel))
	}
	if s.wait == nil {
		s.wait = defaultWaiter
	}
	if s.eng == nil {
		cfg := Config{
			Host:        host,
			Port:        iport,
			ConnectOnly: true,
			VerifyPeer:  true,
			CertInfo:    true,
		}
		if encrypted {
			cfg.URL = "https://" + host
		} else {
			cfg.URL = host
		}

		if s.eng, err = newEngine(cfg); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Connect runs the engine handshake.  A completed transport connection
// whose peer failed verification yields stream.ErrCertificate on encrypted
// streams; the socket stays populated so policy above the stream can still
// use or inspect the connection.
func (s *Stream) Connect() error {
	if s.eng == nil {
		return stream.ErrClosed
	}

	var failedCert bool
	if err := s.eng.Perform(); err != nil {
		if !errors.Is(err, ErrVerifyPeer) {
			return netErr("handshake", err)
		}
		failedCert = true
	}

	sock, err := s.eng.Socket()
	if err != nil {
		return netErr("socket", err)
	}
	s.sock = sock

	if s.encrypted && failedCert {
		s.log.WithField("socket", sock).
			Debug("connected, but peer failed verification")
		return stream.ErrCertificate
	}

	return nil
}

// Certificate satisfies the capability contract.  This backend does not
// extract raw certificate bytes, so the payload is always empty.
func (s *Stream) Certificate() (*stream.Cert, error) {
	return &stream.Cert{Kind: stream.CertX509}, nil
}

// Read performs one engine receive, waiting for read-readiness between
// would-block attempts.  It returns as soon as the engine yields anything
// other than would-block: a partial read is the normal success path, and
// orderly peer close surfaces as io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	if s.eng == nil {
		return 0, stream.ErrClosed
	}

	for {
		n, err := s.eng.Recv(p)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, io.EOF):
			return n, io.EOF
		case !errors.Is(err, ErrAgain):
			return 0, netErr("recv", err)
		}

		if err = s.wait(s.sock, true); err != nil {
			return 0, osErr("wait for read", err)
		}
	}
}

// Write sends all of p, waiting for write-readiness before each engine
// attempt and advancing past partial sends.  On success it returns len(p);
// short writes are never surfaced.
func (s *Stream) Write(p []byte) (int, error) {
	if s.eng == nil {
		return 0, stream.ErrClosed
	}

	var off int
	for off < len(p) {
		if err := s.wait(s.sock, false); err != nil {
			return off, osErr("wait for write", err)
		}

		n, err := s.eng.Send(p[off:])
		if err != nil && !errors.Is(err, ErrAgain) {
			return off, netErr("send", err)
		}
		off += n
	}

	return len(p), nil
}

// Close releases the engine session.  Closing a closed stream is a no-op.
func (s *Stream) Close() error {
	if s.eng == nil {
		return nil
	}

	err := s.eng.Close()
	s.eng = nil
	s.sock = 0
	return err
}

// Free closes the stream and discards it.  The stream must not be used
// after Free returns.
func (s *Stream) Free() { _ = s.Close() }

// Encrypted reports whether Connect negotiates TLS.
func (s *Stream) Encrypted() bool { return s.encrypted }

// Version returns the capability-set version.
func (s *Stream) Version() int { return stream.Version }

func netErr(op string, err error) error {
	return stream.NewError(stream.Network, "engine error: "+op, err)
}

func osErr(op string, err error) error {
	return stream.NewError(stream.OS, op, err)
}
