package choreo

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
)

// Transport selects how a session reaches the endpoint. It is chosen once at
// startup.
type Transport interface {
	// Scheme is the URL scheme used when no base URL is configured.
	Scheme() string

	// RoundTripper builds the HTTP transport for the session.
	RoundTripper() (http.RoundTripper, error)
}

// PlainTransport connects without encryption.
func PlainTransport() Transport {
	return plainTransport{}
}

type plainTransport struct{}

func (plainTransport) Scheme() string { return "http" }

func (plainTransport) RoundTripper() (http.RoundTripper, error) {
	return http.DefaultTransport.(*http.Transport).Clone(), nil
}

// TLSTransport connects over TLS. If caFile is set, the PEM bundle it names
// replaces the system roots.
func TLSTransport(caFile string) Transport {
	return tlsTransport{caFile: caFile}
}

type tlsTransport struct {
	caFile string
}

func (tlsTransport) Scheme() string { return "https" }

func (t tlsTransport) RoundTripper() (http.RoundTripper, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if t.caFile != "" {
		pem, err := os.ReadFile(t.caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA file %s: no certificates found", t.caFile)
		}
		cfg.RootCAs = pool
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = cfg
	return tr, nil
}

// ParseTransport maps a configuration value ("plain" or "tls") to a Transport.
func ParseTransport(mode, caFile string) (Transport, error) {
	switch mode {
	case "plain":
		if caFile != "" {
			return nil, errors.New("transport: CA file set with plain transport")
		}
		return PlainTransport(), nil
	case "tls", "":
		return TLSTransport(caFile), nil
	}
	return nil, fmt.Errorf("transport: unknown mode %q", mode)
}
