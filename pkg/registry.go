package stream

import (
	"sync"

	"github.com/pkg/errors"
)

// Constructor builds a backend stream for host:port.  No connection attempt
// is made until Connect is called on the result.
type Constructor func(host, port string, encrypted bool) (Stream, error)

var registry struct {
	sync.RWMutex
	tls Constructor
}

// RegisterTLS installs ctor as the constructor used by NewTLS, replacing any
// previous registration.  Passing nil unregisters.
func RegisterTLS(ctor Constructor) {
	registry.Lock()
	registry.tls = ctor
	registry.Unlock()
}

// NewTLS builds an encrypted stream with the registered TLS constructor.
func NewTLS(host, port string) (Stream, error) {
	registry.RLock()
	ctor := registry.tls
	registry.RUnlock()

	if ctor == nil {
		return nil, errors.New("stream: no TLS backend registered")
	}

	return ctor(host, port, true)
}
