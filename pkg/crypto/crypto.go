// Package crypto derives TLS settings for wss connections from a shared
// key. Both ends derive the same CA from the key, so a peer presenting a
// certificate signed by that CA knows the key.
package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// Certificates returns a pool holding the CA derived from key and a fresh
// leaf certificate signed by it. An empty key selects a random one.
func Certificates(key string) (*x509.CertPool, tls.Certificate, error) {
	var leaf tls.Certificate

	if key == "" {
		random, err := RandomString(32)
		if err != nil {
			return nil, leaf, fmt.Errorf("RandomString(32): %s", err)
		}
		key = random
	}

	caKey, caCert, err := newCA(key)
	if err != nil {
		return nil, leaf, fmt.Errorf("newCA(): %s", err)
	}

	leaf, err = newLeaf(caKey, caCert)
	if err != nil {
		return nil, leaf, fmt.Errorf("newLeaf(): %s", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)
	return pool, leaf, nil
}

// ServerConfig returns the TLS settings of a wss echo server. With a key,
// clients must present a certificate derived from the same key.
func ServerConfig(key string) (*tls.Config, error) {
	pool, leaf, err := Certificates(key)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{leaf},
		MinVersion:   tls.VersionTLS13,
	}
	if key != "" {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = pool
	}
	return cfg, nil
}

// ClientConfig returns the TLS settings for dialing wss URLs. With a key
// the server must present a certificate derived from it and the client
// authenticates with its own. Without a key the system roots apply unless
// insecure is set. A nil config means the dialer defaults.
func ClientConfig(key string, insecure bool) (*tls.Config, error) {
	if key == "" {
		if !insecure {
			return nil, nil
		}
		return &tls.Config{InsecureSkipVerify: true}, nil
	}

	pool, leaf, err := Certificates(key)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		Certificates:       []tls.Certificate{leaf},
		InsecureSkipVerify: true, // replaced by VerifyPeerCertificate
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeer(pool, rawCerts)
		},
	}, nil
}

// verifyPeer checks the chain against pool without looking at host names.
func verifyPeer(pool *x509.CertPool, rawCerts [][]byte) error {
	if len(rawCerts) != 1 {
		return fmt.Errorf("unexpected number of raw certs: %d", len(rawCerts))
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool}); err != nil {
		return fmt.Errorf("verify certificate: %w", err)
	}
	return nil
}
