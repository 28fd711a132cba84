package xfer

import "github.com/pkg/errors"

var (
	// ErrAgain is returned by Send and Recv when the operation would
	// block.  The caller waits for socket readiness and retries.
	ErrAgain = errors.New("operation would block")

	// ErrVerifyPeer is returned by Perform when the transport-level
	// handshake completed but the peer's certificate failed
	// verification.
	ErrVerifyPeer = errors.New("peer failed verification")
)

// Config describes a transfer-engine session.  It mirrors the session
// options a stream sets on its engine at construction: the target URL (with
// the https scheme iff the stream is encrypted), the numeric port, and the
// connect-only/verification/cert-info flags.
type Config struct {
	URL  string
	Host string
	Port int

	// ConnectOnly limits Perform to the transport and TLS handshake; no
	// protocol exchange is issued.  The built-in engine is connect-only
	// by construction and ignores this flag.
	ConnectOnly bool
	// VerifyPeer enables peer-certificate verification during Perform.
	VerifyPeer bool
	// CertInfo enables collection of certificate details.  The built-in
	// engine collects none and ignores this flag.
	CertInfo bool
}

// Engine is a transfer-protocol session: a blocking connect-only handshake
// plus single-shot non-blocking sends and receives over the connected
// socket.  Each Stream exclusively owns one Engine; engines are never
// shared.
type Engine interface {
	// Perform runs the handshake, blocking until the session is
	// connected or fails.  ErrVerifyPeer reports a completed transport
	// connection whose peer failed verification.
	Perform() error

	// Socket returns the descriptor last used by the session.
	Socket() (int, error)

	// Send attempts one non-blocking send of p.  It may send fewer than
	// len(p) bytes.  ErrAgain means nothing could be sent right now.
	Send(p []byte) (int, error)

	// Recv attempts one non-blocking receive into p.  ErrAgain means no
	// data is available right now; io.EOF reports orderly peer close.
	Recv(p []byte) (int, error)

	// Close releases the session.
	Close() error
}

// Waiter blocks until fd is ready for the requested direction, or an error
// condition is flagged on the socket.  It blocks with no timeout.
type Waiter func(fd int, wantRead bool) error
