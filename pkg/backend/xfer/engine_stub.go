//go:build !unix

package xfer

import (
	"github.com/pkg/errors"

	stream "github.com/gitwire/streams/pkg"
)

const engineSupported = false

func newEngine(Config) (Engine, error) {
	return nil, stream.ErrNotSupported
}

func defaultWaiter(int, bool) error {
	return errors.New("readiness polling not supported in this build")
}
