// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ASCIIMMO Contributors

// Package tls builds the client-side TLS configuration used to reach the
// auth and world services, which usually run with self-signed certificates.
package tls

import (
	cryptotls "crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// ClientOptions controls how service certificates are verified.
type ClientOptions struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string
	// InsecureSkipVerify disables verification entirely. Development only.
	InsecureSkipVerify bool
}

// LoadClientTLS returns a TLS config trusting the system roots plus any
// certificates found in opts.CAFile.
func LoadClientTLS(opts ClientOptions) (*cryptotls.Config, error) {
	cfg := &cryptotls.Config{
		MinVersion: cryptotls.VersionTLS12,
		//nolint:gosec // G402: opt-in for local development against self-signed services
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
	if opts.CAFile == "" {
		return cfg, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	certs, err := LoadCertificates(opts.CAFile)
	if err != nil {
		return nil, err
	}
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// LoadCertificates reads every CERTIFICATE block from a PEM file.
func LoadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %w", err)
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, parseErr := x509.ParseCertificate(block.Bytes)
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse CA certificate: %w", parseErr)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return certs, nil
}

// NewHTTPClient returns an HTTP client using cfg for TLS.
// No client timeout is set: requests are single-shot and bounded by the caller's context.
func NewHTTPClient(cfg *cryptotls.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = cfg
	return &http.Client{Transport: transport}
}
