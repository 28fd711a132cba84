package xfer

import log "github.com/lthibault/log/pkg"

// Option for the engine-backed stream
type Option func(*Stream) (prev Option)

// OptEngine injects a transfer engine, replacing the built-in one.
func OptEngine(e Engine) Option {
	return func(s *Stream) (prev Option) {
		prev = OptEngine(s.eng)
		s.eng = e
		return
	}
}

// OptWaiter sets the readiness waiter.
func OptWaiter(w Waiter) Option {
	return func(s *Stream) (prev Option) {
		prev = OptWaiter(s.wait)
		s.wait = w
		return
	}
}

// OptLogger sets the logger.
func OptLogger(l log.Logger) Option {
	return func(s *Stream) (prev Option) {
		prev = OptLogger(s.log)
		s.log = l
		return
	}
}
