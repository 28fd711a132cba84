package stream

// Version of the stream capability set.  Backends embed it so the transport
// layer can detect incompatible implementations.
const Version = 1

// Stream is a connected bidirectional byte stream between two hosts.  The
// transport layer above only ever holds this interface; which backend sits
// behind it (transfer engine, plain socket, another TLS library) is decided
// at construction time.
//
// A Stream is not safe for concurrent use.  Distinct Streams share no state
// and may be driven from different goroutines freely.
type Stream interface {
	// Connect performs the transport (and, on encrypted streams, TLS)
	// handshake.  On an encrypted stream whose peer failed certificate
	// verification it returns ErrCertificate while leaving the
	// transport-level connection standing, so that policy above the
	// stream can decide whether to proceed.
	Connect() error

	// Certificate returns the certificate presented by the remote peer.
	Certificate() (*Cert, error)

	Read(b []byte) (int, error)
	Write(b []byte) (int, error)

	// Close releases the stream's resources.  Close is idempotent.
	Close() error

	// Free closes the stream and discards it.  Unlike Close, a freed
	// stream must not be touched again.
	Free()

	// Encrypted reports whether the stream negotiates TLS on Connect.
	// Fixed at construction.
	Encrypted() bool

	// Version returns the capability-set version the backend implements.
	Version() int
}

// CertKind tags the payload of a Cert.
type CertKind uint8

// CertX509 marks a DER-encoded X.509 certificate payload.
const CertX509 CertKind = 1 + iota

// Cert is the certificate presented by the remote peer.  Raw may be empty:
// backends are only required to report the kind.
type Cert struct {
	Kind CertKind
	Raw  []byte
}
