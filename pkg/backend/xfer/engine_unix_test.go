//go:build unix

package xfer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"

	stream "github.com/gitwire/streams/pkg"
)

func TestNewDefaultEngine(t *testing.T) {
	s, err := New("example.com", "443", true)
	assert.NoError(t, err)
	assert.NotNil(t, s.eng)

	// no connection was attempted, so close releases a dormant session
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestPlainRoundtrip(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer l.Close()

	var g errgroup.Group
	g.Go(func() error {
		conn, err := l.Accept()
		if err != nil {
			return errors.Wrap(err, "accept")
		}
		defer conn.Close()

		buf := make([]byte, 4)
		if _, err = io.ReadFull(conn, buf); err != nil {
			return errors.Wrap(err, "server recv")
		}
		if string(buf) != "ping" {
			return errors.Errorf("server got %q", buf)
		}

		_, err = conn.Write([]byte("pong"))
		return errors.Wrap(err, "server send")
	})

	host, port, err := net.SplitHostPort(l.Addr().String())
	assert.NoError(t, err)

	s, err := New(host, port, false)
	assert.NoError(t, err)
	defer s.Free()

	assert.NoError(t, s.Connect())
	assert.NotZero(t, s.sock)

	n, err := s.Write([]byte("ping"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	assert.NoError(t, err)
	assert.Equal(t, "pong", string(buf))

	assert.NoError(t, g.Wait())

	// orderly close on the server side surfaces as EOF
	_, err = s.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestRejectedCertificate(t *testing.T) {
	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{selfSignedCert(t)},
	})
	assert.NoError(t, err)
	defer l.Close()

	var g errgroup.Group
	g.Go(func() error {
		conn, err := l.Accept()
		if err != nil {
			return errors.Wrap(err, "accept")
		}
		defer conn.Close()

		buf := make([]byte, 5)
		if _, err = io.ReadFull(conn, buf); err != nil {
			return errors.Wrap(err, "server recv")
		}

		_, err = conn.Write(buf)
		return errors.Wrap(err, "server send")
	})

	host, port, err := net.SplitHostPort(l.Addr().String())
	assert.NoError(t, err)

	s, err := New(host, port, true)
	assert.NoError(t, err)
	defer s.Free()

	// self-signed peer: the sentinel comes back, distinct from a generic
	// failure, and the connection stands
	err = s.Connect()
	assert.True(t, errors.Is(err, stream.ErrCertificate))
	assert.False(t, stream.IsKind(err, stream.Network))
	assert.NotZero(t, s.sock)

	n, err := s.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	_, err = io.ReadFull(s, buf)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	assert.NoError(t, g.Wait())
}

func selfSignedCert(t *testing.T) tls.Certificate {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "xfer test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	assert.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}
