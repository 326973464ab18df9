// SPDX-License-Identifier: GPL-3.0-or-later

package web

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig configures the client side of a TLS connection.
type TLSConfig struct {
	// TLSCA is the path to a PEM file with the certificate authorities used to verify the server.
	TLSCA string `yaml:"tls_ca,omitempty" json:"tls_ca"`

	// TLSCert and TLSKey are the client certificate and key, both PEM files.
	TLSCert string `yaml:"tls_cert,omitempty" json:"tls_cert"`
	TLSKey  string `yaml:"tls_key,omitempty" json:"tls_key"`

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool `yaml:"tls_skip_verify,omitempty" json:"tls_skip_verify"`
}

// NewTLSConfig creates a *tls.Config. It returns nil when nothing is configured.
func NewTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if cfg.TLSCA == "" && cfg.TLSCert == "" && cfg.TLSKey == "" && !cfg.InsecureSkipVerify {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Renegotiation:      tls.RenegotiateNever,
	}

	if cfg.TLSCA != "" {
		pem, err := os.ReadFile(cfg.TLSCA)
		if err != nil {
			return nil, fmt.Errorf("could not read certificate authority file '%s': %v", cfg.TLSCA, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("could not parse certificate authority file '%s'", cfg.TLSCA)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		if cfg.TLSCert == "" || cfg.TLSKey == "" {
			return nil, fmt.Errorf("both 'tls_cert' and 'tls_key' must be set")
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("could not load keypair %s:%s: %v", cfg.TLSCert, cfg.TLSKey, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
