package backend

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"
)

// NewHTTPClient returns an HTTP client that trusts the system roots plus the
// PEM bundle at caFile. A missing caFile is ignored so the client also works
// against a publicly trusted backend.
func NewHTTPClient(caFile string, timeout time.Duration) (*http.Client, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		case !pool.AppendCertsFromPEM(caCert):
			return nil, fmt.Errorf("failed to parse CA cert %s", caFile)
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
