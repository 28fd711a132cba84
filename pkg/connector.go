package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	log "github.com/lthibault/log/pkg"
)

// Connector builds and connects streams, retrying transient network
// failures.
type Connector struct {
	// New builds the backend stream.
	New Constructor

	// Attempts is the total number of connect attempts.  Values below 1
	// are treated as 1 (no retry).
	Attempts int

	Backoff backoff.Backoff
	Logger  log.Logger

	o sync.Once
}

func (c *Connector) init() {
	if c.Logger == nil {
		c.Logger = log.New(log.OptLevel(log.NullLevel))
	}
	if c.Attempts < 1 {
		c.Attempts = 1
	}
}

// Connect builds a stream for host:port and connects it.  Only Network-kind
// failures are retried; parse and OS failures abort immediately.
//
// ErrCertificate is returned as-is together with the connected stream, so
// that callers can inspect the certificate or apply their own trust policy
// before deciding to proceed.  The caller owns the stream in that case.
func (c *Connector) Connect(host, port string, encrypted bool) (Stream, error) {
	c.o.Do(c.init)

	b := c.Backoff // copy: Connector is reusable

	var err error
	for i := 0; i < c.Attempts; i++ {
		if i > 0 {
			d := b.Duration()
			c.Logger.WithError(err).
				WithField("host", host).
				WithField("retry", d).
				Debug("connect failed")
			time.Sleep(d)
		}

		var s Stream
		if s, err = c.New(host, port, encrypted); err != nil {
			if !IsKind(err, Network) {
				return nil, err
			}
			continue
		}

		if err = s.Connect(); err == nil || errors.Is(err, ErrCertificate) {
			return s, err
		}

		s.Free()
		if !IsKind(err, Network) {
			return nil, err
		}
	}

	return nil, err
}
